package auth

import (
	"testing"

	"menagent/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestTokenRoundTripAndClear(t *testing.T) {
	store := newTestStore(t)

	if got := store.Token(); got != "" {
		t.Fatalf("fresh store Token() = %q, want empty", got)
	}

	if err := store.SetToken("tok-123"); err != nil {
		t.Fatalf("SetToken() error: %v", err)
	}
	if got := store.Token(); got != "tok-123" {
		t.Fatalf("Token() = %q", got)
	}

	if err := store.ClearToken(); err != nil {
		t.Fatalf("ClearToken() error: %v", err)
	}
	if got := store.Token(); got != "" {
		t.Fatalf("Token() after clear = %q, want empty", got)
	}
}

func TestSetOverwritesExistingValue(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetServerURL("https://a.example.com"); err != nil {
		t.Fatalf("SetServerURL() error: %v", err)
	}
	if err := store.SetServerURL("https://b.example.com"); err != nil {
		t.Fatalf("second SetServerURL() error: %v", err)
	}
	if got := store.ServerURL(); got != "https://b.example.com" {
		t.Fatalf("ServerURL() = %q", got)
	}
}

func TestEmployeeRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if _, ok := store.Employee(); ok {
		t.Fatalf("fresh store reported an employee")
	}

	want := models.Employee{ID: 7, EmployeeName: "Dana"}
	if err := store.SetEmployee(want); err != nil {
		t.Fatalf("SetEmployee() error: %v", err)
	}
	got, ok := store.Employee()
	if !ok || got != want {
		t.Fatalf("Employee() = (%+v, %v), want %+v", got, ok, want)
	}
}

func TestSettingsFallBackToDefaults(t *testing.T) {
	store := newTestStore(t)

	if got := store.Settings(); got != models.DefaultSettings() {
		t.Fatalf("fresh store Settings() = %+v, want defaults", got)
	}

	custom := models.DefaultSettings()
	custom.ScreenshotIntervalSeconds = 60
	custom.EnableRecording = true
	if err := store.SetSettings(custom); err != nil {
		t.Fatalf("SetSettings() error: %v", err)
	}
	if got := store.Settings(); got != custom {
		t.Fatalf("Settings() = %+v, want the stored snapshot", got)
	}
}

func TestConnectedFlag(t *testing.T) {
	store := newTestStore(t)

	if store.Connected() {
		t.Fatalf("fresh store Connected() = true")
	}
	if err := store.SetConnected(true); err != nil {
		t.Fatalf("SetConnected() error: %v", err)
	}
	if !store.Connected() {
		t.Fatalf("Connected() = false after SetConnected(true)")
	}
	if err := store.SetConnected(false); err != nil {
		t.Fatalf("SetConnected(false) error: %v", err)
	}
	if store.Connected() {
		t.Fatalf("Connected() = true after SetConnected(false)")
	}
}
