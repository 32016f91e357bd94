package module

import (
	"strings"

	"github.com/conciergehq/concierge/internal/artifact"
)

// Fingerprinter lets a module publish content fingerprints for its outputs.
// The resolver compares them against the fingerprints stamped into artifact
// metadata, so a changed input reruns the module without it being asked.
type Fingerprinter interface {
	ArtifactFingerprints(ctx *ModuleContext) (map[string]string, error)
}

// ArtifactStatus is the audit verdict for a single output artifact.
type ArtifactStatus string

const (
	ArtifactStatusUnknown  ArtifactStatus = "unknown"
	ArtifactStatusFresh    ArtifactStatus = "fresh"
	ArtifactStatusReady    ArtifactStatus = "ready"
	ArtifactStatusMissing  ArtifactStatus = "missing"
	ArtifactStatusInvalid  ArtifactStatus = "invalid"
	ArtifactStatusOutdated ArtifactStatus = "outdated"
	ArtifactStatusError    ArtifactStatus = "error"
)

// ArtifactInvalidationReason says why an artifact failed its audit.
type ArtifactInvalidationReason string

const (
	InvalidationReasonMissing         ArtifactInvalidationReason = "missing"
	InvalidationReasonInvalidMetadata ArtifactInvalidationReason = "invalid-metadata"
	InvalidationReasonVersionMismatch ArtifactInvalidationReason = "version-mismatch"
	InvalidationReasonFingerprint     ArtifactInvalidationReason = "fingerprint-mismatch"
	InvalidationReasonCheckError      ArtifactInvalidationReason = "check-error"
)

// ArtifactInvalidation describes one failed audit. Modules that implement
// ArtifactInvalidationHandler receive it before the rerun happens, which is
// the place to drop derived files that would otherwise go stale silently.
type ArtifactInvalidation struct {
	Artifact            artifact.ArtifactRef
	Status              ArtifactStatus
	Reason              ArtifactInvalidationReason
	StoredFingerprint   string
	ExpectedFingerprint string
	Metadata            *artifact.Metadata
	Err                 error
}

type ArtifactInvalidationHandler interface {
	OnArtifactInvalidation(ctx *ModuleContext, event ArtifactInvalidation) error
}

const fingerprintNotePrefix = "fingerprint:"

// FingerprintNoteKey is the metadata note key under which an artifact's
// fingerprint is stamped. A blank artifact ID maps to the default key.
func FingerprintNoteKey(artifactID string) string {
	id := strings.TrimSpace(artifactID)
	if id == "" {
		id = "default"
	}
	return fingerprintNotePrefix + id
}
