package validator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/yashkhare05/Uptime/internal/identity"
	"github.com/yashkhare05/Uptime/internal/logger"
)

// LoadOrCreateKeypair reads the keypair at path. When the file does not
// exist and create is set, a new keypair is generated and saved there.
func LoadOrCreateKeypair(path string, create bool, log logger.Logger) (*identity.Keypair, error) {
	kp, err := identity.LoadKeypair(path)
	if err == nil {
		return kp, nil
	}
	if _, statErr := os.Stat(path); !errors.Is(statErr, fs.ErrNotExist) || !create {
		return nil, err
	}

	kp, err = identity.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	if err := kp.Save(path); err != nil {
		return nil, fmt.Errorf("save new keypair: %w", err)
	}
	log.Info("generated new keypair",
		logger.String("file", path),
		logger.String("public_key", kp.PublicKey()))
	return kp, nil
}
