package attendance

import (
	"context"
	"time"

	"github.com/MrCodeEU/faceattend/pkg/enrollment"
	"github.com/MrCodeEU/faceattend/pkg/ledger"
	"github.com/MrCodeEU/faceattend/pkg/storage"
	"github.com/MrCodeEU/faceattend/pkg/verification"
)

// MockEnroller implements Enroller for testing
type MockEnroller struct {
	EnrollFunc func(identity storage.Identity, target int) (enrollment.Result, error)
	calls      int
}

func (m *MockEnroller) Enroll(_ context.Context, identity storage.Identity, target int) (enrollment.Result, error) {
	m.calls++
	if m.EnrollFunc != nil {
		return m.EnrollFunc(identity, target)
	}
	return enrollment.Result{Captured: target, Target: target}, nil
}

// MockVerifier implements Verifier for testing
type MockVerifier struct {
	VerifyFunc func(identity storage.Identity) (verification.Decision, error)
	calls      int
}

func (m *MockVerifier) Verify(_ context.Context, identity storage.Identity) (verification.Decision, error) {
	m.calls++
	if m.VerifyFunc != nil {
		return m.VerifyFunc(identity)
	}
	return verification.Decision{Identity: identity, Matched: true, State: verification.Matched}, nil
}

// MockRegistry implements Registry for testing
type MockRegistry struct {
	ExistsFunc func(group, id string) bool
}

func (m *MockRegistry) Exists(group, id string) bool {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(group, id)
	}
	return true
}

// MockLedger implements ledger.Ledger for testing
type MockLedger struct {
	AppendFunc func(entry ledger.Entry) error
	entries    []ledger.Entry
	closed     bool
}

func (m *MockLedger) Append(entry ledger.Entry) error {
	if m.AppendFunc != nil {
		if err := m.AppendFunc(entry); err != nil {
			return err
		}
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MockLedger) List() ([]ledger.Entry, error) {
	return m.entries, nil
}

func (m *MockLedger) Close() error {
	m.closed = true
	return nil
}

var fixedNow = time.Date(2024, 9, 2, 8, 15, 30, 0, time.Local)
