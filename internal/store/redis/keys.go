package redis

const (
	// KeyPrefixValidator is the prefix for validator hashes
	KeyPrefixValidator = "uptime:validator:"
	// KeyPrefixValidatorByKey maps a public key to its validator ID
	KeyPrefixValidatorByKey = "uptime:pubkey:"
	// KeyPrefixTarget is the prefix for target keys
	KeyPrefixTarget = "uptime:target:"
	// KeyAllTargets is the key for the set of all target IDs
	KeyAllTargets = "uptime:targets:all"
	// KeyPrefixTicks is the prefix for the per target tick lists
	KeyPrefixTicks = "uptime:ticks:"
)

// ValidatorKey returns the Redis key for a validator hash by ID
func ValidatorKey(id string) string {
	return KeyPrefixValidator + id
}

// ValidatorByKeyKey returns the index key for a public key
func ValidatorByKeyKey(publicKey string) string {
	return KeyPrefixValidatorByKey + publicKey
}

// TargetKey returns the Redis key for a target by ID
func TargetKey(id string) string {
	return KeyPrefixTarget + id
}

// AllTargetsKey returns the key for the set of all target IDs
func AllTargetsKey() string {
	return KeyAllTargets
}

// TicksKey returns the list key holding ticks for a target, newest first
func TicksKey(targetID string) string {
	return KeyPrefixTicks + targetID
}
