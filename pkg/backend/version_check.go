package backend

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	RequiredBackendVersion string = "v1.4.0"
)

func CheckBackendVersion(toCheck string) bool {
	if !strings.HasPrefix(toCheck, "v") {
		toCheck = "v" + toCheck
	}
	if !semver.IsValid(toCheck) {
		return false
	}
	return semver.Compare(toCheck, RequiredBackendVersion) >= 0
}

// VerifyVersion asks the backend for its version and rejects outdated ones.
func VerifyVersion(ctx context.Context, b Backend) error {
	v, err := b.Version(ctx)
	if err != nil {
		return err
	}
	if !CheckBackendVersion(v) {
		return fmt.Errorf("backend version %s is older than required %s",
			v, RequiredBackendVersion)
	}
	return nil
}
