package sentimentgate

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Issuer produces upload targets scoped to one account and one object key.
type Issuer struct {
	cfg       UploadConfig
	presigner Presigner
	meter     Meter
	now       func() time.Time
}

// NewIssuer creates an Issuer. cfg is expected to have defaults applied.
func NewIssuer(cfg UploadConfig, presigner Presigner, meter Meter) *Issuer {
	if meter == nil {
		meter = &noopMeter{}
	}
	return &Issuer{cfg: cfg, presigner: presigner, meter: meter, now: time.Now}
}

// Issue validates fileType against the allow-list and presigns a PUT for a
// fresh key namespaced by the account.
func (i *Issuer) Issue(ctx context.Context, acct Account, fileType string) (UploadTarget, error) {
	ext := NormalizeExtension(fileType)
	contentType, ok := i.cfg.AllowedTypes[ext]
	if !ok || ext == "." {
		return UploadTarget{}, fmt.Errorf("%w: unsupported file type %q", ErrInvalidInput, fileType)
	}

	key := i.objectKey(acct.ID, ext)
	url, err := i.presigner.PresignPut(ctx, key, contentType, i.cfg.TTL)
	if err != nil {
		return UploadTarget{}, &PipelineError{
			Err:       fmt.Errorf("%w: presign: %v", ErrTransport, err),
			Stage:     StageIssue,
			AccountID: acct.ID,
			Key:       key,
		}
	}

	i.meter.OnIssue(IssueEvent{AccountID: acct.ID, Key: key, Extension: ext})

	return UploadTarget{
		URL:         url,
		Key:         key,
		ContentType: contentType,
		ExpiresAt:   i.now().Add(i.cfg.TTL),
	}, nil
}

func (i *Issuer) objectKey(accountID, ext string) string {
	return path.Join(i.cfg.KeyPrefix, accountID, uuid.New().String()+ext)
}

// OwnsKey reports whether key lies in the account's upload namespace.
func OwnsKey(cfg UploadConfig, accountID, key string) bool {
	if accountID == "" || strings.Contains(key, "..") {
		return false
	}
	prefix := path.Join(cfg.KeyPrefix, accountID) + "/"
	rest, ok := strings.CutPrefix(key, prefix)
	return ok && rest != "" && !strings.Contains(rest, "/")
}
