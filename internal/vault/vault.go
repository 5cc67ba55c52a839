package vault

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dws/control-plane/internal/apierr"
	"github.com/dws/control-plane/internal/keyedlock"
	"github.com/dws/control-plane/internal/reqvalidate"
	"github.com/dws/control-plane/internal/telemetry"
)

// Auditor records a credential lifecycle event. internal/audit.Log
// satisfies this by duck typing; vault never imports the audit package
// directly (the audit log is a shared collaborator, not a vault concern).
type Auditor interface {
	Append(action, subject, owner, details string)
}

// Store is the persistence boundary vault.Service needs: an owner-scoped
// set of Credential rows, addressed by id. A production Store would back
// onto the external StateStore (spec §6); tests use an in-memory Store.
type Store interface {
	Insert(c Credential) error
	Get(id string) (Credential, bool)
	Update(c Credential) error
	ListByOwner(owner string) []Credential
}

// Service implements the §4.A CredentialVault operations.
type Service struct {
	store     Store
	auditor   Auditor
	verifier  *verifier
	masterKey []byte
	locks     *keyedlock.Registry
}

// New constructs a Service. masterKey must be at least 32 bytes in
// production; a shorter key is accepted (with the caller expected to have
// already logged the dev-fallback warning per spec §4.A) so tests can use
// short fixed keys.
func New(store Store, auditor Auditor, masterKey []byte, endpoints Endpoints) *Service {
	return &Service{
		store:     store,
		auditor:   auditor,
		verifier:  newVerifier(endpoints),
		masterKey: masterKey,
		locks:     keyedlock.New(),
	}
}

// Store validates, verifies, encrypts, and persists a new credential (spec
// §4.A). Serialized per the generated id is moot (the id does not exist
// until this call creates it); no lock is needed here.
func (s *Service) Store(ctx context.Context, owner string, req StoreRequest) (Credential, error) {
	owner = strings.ToLower(owner)

	if err := reqvalidate.Struct(req); err != nil {
		return Credential{}, err
	}

	if err := s.verifier.verify(ctx, req); err != nil {
		telemetry.CredentialVerifyFailedTotal.WithLabelValues(string(req.Provider)).Inc()
		return Credential{}, err
	}

	encKey, err := encrypt(s.masterKey, owner, req.APIKey)
	if err != nil {
		return Credential{}, err
	}
	encSecret, err := encrypt(s.masterKey, owner, req.APISecret)
	if err != nil {
		return Credential{}, err
	}
	encProject, err := encrypt(s.masterKey, owner, req.ProjectID)
	if err != nil {
		return Credential{}, err
	}

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = []string{"*"}
	}

	c := Credential{
		ID:           "cred-" + uuid.NewString(),
		Provider:     req.Provider,
		Name:         req.Name,
		Owner:        owner,
		EncAPIKey:    encKey,
		EncAPISecret: encSecret,
		EncProjectID: encProject,
		Region:       req.Region,
		Scopes:       scopes,
		CreatedAt:    time.Now().UTC(),
		Status:       StatusActive,
		ExpiresAt:    req.ExpiresAt,
	}

	if err := s.store.Insert(c); err != nil {
		return Credential{}, apierr.Wrap(apierr.Transient, "persisting credential", err)
	}

	telemetry.CredentialsStoredTotal.WithLabelValues(string(req.Provider)).Inc()
	s.auditor.Append("create", c.ID, owner, fmt.Sprintf("provider=%s name=%s", req.Provider, req.Name))

	return c, nil
}

// GetDecrypted returns the plaintext triple iff owner == requester, status
// is active, and the credential has not expired (spec §4.A). Unauthorized
// attempts are audited and return NotFound (no existence oracle, spec §7).
func (s *Service) GetDecrypted(ctx context.Context, credID, requester string) (Decrypted, error) {
	requester = strings.ToLower(requester)
	unlock := s.locks.Lock(credID)
	defer unlock()

	c, ok := s.store.Get(credID)

	if !ok || c.Owner != requester {
		telemetry.CredentialAccessDeniedTotal.Inc()
		s.auditor.Append("use", credID, requester, "Unauthorized: owner mismatch or credential does not exist")
		return Decrypted{}, apierr.New(apierr.NotFound, "credential not found")
	}
	if c.Status != StatusActive {
		telemetry.CredentialAccessDeniedTotal.Inc()
		s.auditor.Append("use", credID, requester, fmt.Sprintf("Unauthorized: status=%s", c.Status))
		return Decrypted{}, apierr.New(apierr.NotFound, "credential not found")
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(time.Now()) {
		telemetry.CredentialAccessDeniedTotal.Inc()
		s.auditor.Append("use", credID, requester, "Unauthorized: credential expired")
		return Decrypted{}, apierr.New(apierr.NotFound, "credential not found")
	}

	apiKey, err := decrypt(s.masterKey, c.Owner, c.EncAPIKey)
	if err != nil {
		return Decrypted{}, err
	}
	apiSecret, err := decrypt(s.masterKey, c.Owner, c.EncAPISecret)
	if err != nil {
		return Decrypted{}, err
	}
	projectID, err := decrypt(s.masterKey, c.Owner, c.EncProjectID)
	if err != nil {
		return Decrypted{}, err
	}

	now := time.Now().UTC()
	c.UsageCount++
	c.LastUsedAt = &now
	if err := s.store.Update(c); err != nil {
		return Decrypted{}, apierr.Wrap(apierr.Transient, "recording credential usage", err)
	}

	s.auditor.Append("use", credID, requester, "ok")

	return Decrypted{APIKey: apiKey, APISecret: apiSecret, ProjectID: projectID}, nil
}

// List returns metadata (no encrypted fields) for the owner's active
// credentials (spec §4.A).
func (s *Service) List(owner string) []Credential {
	owner = strings.ToLower(owner)
	all := s.store.ListByOwner(owner)
	out := make([]Credential, 0, len(all))
	for _, c := range all {
		if c.Status != StatusActive {
			continue
		}
		c.EncAPIKey, c.EncAPISecret, c.EncProjectID = "", "", ""
		out = append(out, c)
	}
	return out
}

// Revoke transitions a credential to revoked, owner-scoped and idempotent.
func (s *Service) Revoke(credID, owner string) (bool, error) {
	return s.transition(credID, owner, StatusRevoked, "revoke")
}

// Delete unlinks a credential from the index entirely, owner-scoped and
// idempotent. Unlike Revoke, a deleted credential is excluded from List and
// from Audit-visible lookups by id; GetDecrypted and MarkError both treat it
// as not found, same as a revoked one, but it never reappears as active
// again even via re-verification.
func (s *Service) Delete(credID, owner string) (bool, error) {
	return s.transition(credID, owner, StatusDeleted, "delete")
}

func (s *Service) transition(credID, owner string, to Status, action string) (bool, error) {
	owner = strings.ToLower(owner)
	unlock := s.locks.Lock(credID)
	defer unlock()

	c, ok := s.store.Get(credID)
	if !ok {
		return false, nil
	}
	if c.Owner != owner {
		return false, nil
	}
	if c.Status == to {
		return true, nil
	}
	if c.Status == StatusDeleted {
		return false, nil
	}

	c.Status = to
	if err := s.store.Update(c); err != nil {
		return false, apierr.Wrap(apierr.Transient, "updating credential status", err)
	}

	s.auditor.Append(action, credID, owner, fmt.Sprintf("status=%s", to))
	return true, nil
}

// MarkError transitions a credential to error and records the message.
// Internal; called by components that fail to use a decrypted credential
// (e.g. CloudGateway rejecting it).
func (s *Service) MarkError(credID, message string) error {
	unlock := s.locks.Lock(credID)
	defer unlock()

	c, ok := s.store.Get(credID)
	if !ok {
		return apierr.New(apierr.NotFound, "credential not found")
	}
	now := time.Now().UTC()
	c.Status = StatusError
	c.LastError = message
	c.LastErrorAt = &now
	if err := s.store.Update(c); err != nil {
		return apierr.Wrap(apierr.Transient, "recording credential error", err)
	}
	s.auditor.Append("use", credID, c.Owner, "error: "+message)
	return nil
}
