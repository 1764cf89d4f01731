package targets

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/yashkhare05/Uptime/internal/domain"
)

// MapTargets converts a targets file into domain targets. An invalid URL or
// a repeated ID rejects the whole file so a typo never silently drops a
// monitored site.
func MapTargets(file File) ([]domain.Target, error) {
	targets := make([]domain.Target, 0, len(file.Targets))
	seen := make(map[string]int, len(file.Targets))

	for i, entry := range file.Targets {
		raw := strings.TrimSpace(entry.URL)
		if err := validateURL(raw); err != nil {
			return nil, fmt.Errorf("target #%d: %w", i+1, err)
		}

		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = TargetID(raw)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("target #%d: id %q already used by target #%d", i+1, id, prev)
		}
		seen[id] = i + 1

		targets = append(targets, domain.Target{
			ID:       id,
			URL:      raw,
			Disabled: entry.Disabled,
		})
	}

	return targets, nil
}

// TargetID derives a stable name based UUID from a URL.
func TargetID(rawURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rawURL)).String()
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("missing url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}
