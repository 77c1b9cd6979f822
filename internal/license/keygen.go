// internal/license/keygen.go
package license

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"

	"github.com/keygen-sh/keygen-go/v3"
	"go.uber.org/zap"
)

var noticeOnce sync.Once

// EmitNotice logs the licensing notice once per process. Calling it is an
// explicit, optional initialization step; importing this package has no side
// effects.
func EmitNotice(logger *zap.Logger) {
	noticeOnce.Do(func() {
		logger.Info("This software is licensed per-seat; unlicensed use is limited to evaluation")
	})
}

// KeygenValidator validates license keys against Keygen.sh.
type KeygenValidator struct {
	logger    *zap.Logger
	accountID string
	productID string
}

// NewKeygenValidator configures the global Keygen client and returns a
// validator bound to the given account and product.
func NewKeygenValidator(accountID, productToken, productID string, logger *zap.Logger) *KeygenValidator {
	keygen.Account = accountID
	keygen.Product = productID
	keygen.Token = productToken
	keygen.PublicKey = ""

	return &KeygenValidator{
		logger:    logger,
		accountID: accountID,
		productID: productID,
	}
}

// ValidateLicense validates a license key, activating this machine when the
// key has not been activated yet.
func (kv *KeygenValidator) ValidateLicense(ctx context.Context, licenseKey string) error {
	if len(licenseKey) < 8 {
		return fmt.Errorf("license key too short")
	}
	kv.logger.Info("Validating license: " + licenseKey[:8] + "...")

	fingerprint, err := kv.generateFingerprint()
	if err != nil {
		return fmt.Errorf("failed to generate machine fingerprint: %w", err)
	}

	keygen.LicenseKey = licenseKey

	license, err := keygen.Validate(ctx, fingerprint)
	switch {
	case err == keygen.ErrLicenseNotActivated:
		kv.logger.Info("License not activated, attempting activation")
		machine, activateErr := license.Activate(ctx, fingerprint)
		if activateErr != nil {
			return fmt.Errorf("failed to activate license: %w", activateErr)
		}
		kv.logger.Info("License activated successfully",
			zap.String("machine_id", machine.ID),
			zap.String("fingerprint", fingerprint),
		)

	case err == keygen.ErrLicenseExpired:
		return fmt.Errorf("license has expired")

	case err != nil:
		return fmt.Errorf("license validation failed: %w", err)
	}

	if license == nil {
		return fmt.Errorf("license not found")
	}

	kv.logger.Info("License validation successful",
		zap.String("license_id", license.ID),
	)

	return nil
}

// HeartbeatLicense re-validates to keep the machine activation alive.
func (kv *KeygenValidator) HeartbeatLicense(ctx context.Context, licenseKey string) error {
	keygen.LicenseKey = licenseKey

	fingerprint, err := kv.generateFingerprint()
	if err != nil {
		return fmt.Errorf("failed to generate machine fingerprint: %w", err)
	}

	_, err = keygen.Validate(ctx, fingerprint)
	if err != nil {
		return fmt.Errorf("heartbeat failed: %w", err)
	}

	kv.logger.Debug("License heartbeat sent successfully")
	return nil
}

// generateFingerprint derives a stable machine fingerprint from hostname, the
// first active MAC address, and the OS.
func (kv *KeygenValidator) generateFingerprint() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	var macAddresses []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0 {
			macAddresses = append(macAddresses, iface.HardwareAddr.String())
		}
	}

	if len(macAddresses) == 0 {
		return "", fmt.Errorf("no network interfaces found")
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	data := fmt.Sprintf("%s-%s-%s", hostname, macAddresses[0], runtime.GOOS)
	hash := sha256.Sum256([]byte(data))

	return fmt.Sprintf("%x", hash), nil
}
