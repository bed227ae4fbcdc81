package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"healthchat/internal/models"
)

const (
	testLocalUser = "@local:healthchat.io"
	testToken     = "syt_test_token"
)

type fakeHomeserver struct {
	profileStatus int
	profileBody   string

	capabilitiesBody string

	propertyBody   string
	propertyStatus int

	lastMethod string
	lastBody   []byte
	lastToken  string
}

func (h *fakeHomeserver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.lastMethod = r.Method
	h.lastToken = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	h.lastBody, _ = io.ReadAll(r.Body)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/_matrix/client/v3/capabilities":
		_, _ = w.Write([]byte(h.capabilitiesBody))
	case len(r.URL.Path) > len("/_matrix/client/v3/profile/") && r.URL.Path[:len("/_matrix/client/v3/profile/")] == "/_matrix/client/v3/profile/":
		if h.profileStatus != 0 {
			w.WriteHeader(h.profileStatus)
		}
		_, _ = w.Write([]byte(h.profileBody))
	default:
		// Extended property endpoints under the unstable prefix.
		if h.propertyStatus != 0 {
			w.WriteHeader(h.propertyStatus)
		}
		_, _ = w.Write([]byte(h.propertyBody))
	}
}

func newTestDirectory(t *testing.T, h *fakeHomeserver) *MatrixDirectory {
	t.Helper()
	if h.profileBody == "" {
		h.profileBody = `{}`
	}
	if h.capabilitiesBody == "" {
		h.capabilitiesBody = `{"capabilities":{}}`
	}
	if h.propertyBody == "" {
		h.propertyBody = `{}`
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	dir, err := NewMatrixDirectory(MatrixConfig{
		HomeserverURL: srv.URL,
		UserID:        testLocalUser,
		AccessToken:   testToken,
	}, nil)
	if err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	return dir
}

func TestNewMatrixDirectoryValidatesUserID(t *testing.T) {
	_, err := NewMatrixDirectory(MatrixConfig{HomeserverURL: "http://example.org", UserID: "no-sigil"}, nil)
	if err == nil {
		t.Error("expected error for invalid user ID")
	}
	_, err = NewMatrixDirectory(MatrixConfig{HomeserverURL: "http://example.org"}, nil)
	if err == nil {
		t.Error("expected error for missing user ID")
	}
}

func TestProfileInfo(t *testing.T) {
	h := &fakeHomeserver{profileBody: `{"displayname":"Alice","avatar_url":"mxc://x/a"}`}
	dir := newTestDirectory(t, h)

	profile, err := dir.ProfileInfo(context.Background(), "@alice:x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.DisplayName != "Alice" || profile.AvatarURL != "mxc://x/a" {
		t.Errorf("unexpected profile: %+v", profile)
	}
	if h.lastMethod != http.MethodGet {
		t.Errorf("expected GET, got %s", h.lastMethod)
	}
	if h.lastToken != testToken {
		t.Errorf("expected access token on request, got %q", h.lastToken)
	}
}

func TestProfileInfoNotFound(t *testing.T) {
	h := &fakeHomeserver{
		profileStatus: http.StatusNotFound,
		profileBody:   `{"errcode":"M_NOT_FOUND","error":"Profile was not found"}`,
	}
	dir := newTestDirectory(t, h)

	_, err := dir.ProfileInfo(context.Background(), "@ghost:x")
	var dirErr *Error
	if !errors.As(err, &dirErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if !dirErr.IsNotFound() || dirErr.StatusCode != http.StatusNotFound {
		t.Errorf("unexpected error: %+v", dirErr)
	}
}

func TestProfileInfoUnrecognizedFailure(t *testing.T) {
	h := &fakeHomeserver{
		profileStatus: http.StatusBadGateway,
		profileBody:   `upstream exploded`,
	}
	dir := newTestDirectory(t, h)

	_, err := dir.ProfileInfo(context.Background(), "@alice:x")
	if err == nil {
		t.Fatal("expected error")
	}
	var dirErr *Error
	if errors.As(err, &dirErr) {
		t.Errorf("bodies without an errcode must stay unrecognized, got %+v", dirErr)
	}
}

func TestSupportsExtendedProfiles(t *testing.T) {
	h := &fakeHomeserver{
		capabilitiesBody: `{"capabilities":{"uk.tcpip.msc4133.profile_fields":{"enabled":true}}}`,
	}
	dir := newTestDirectory(t, h)

	supported, err := dir.SupportsExtendedProfiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !supported {
		t.Error("expected capability enabled")
	}
}

func TestSupportsExtendedProfilesAbsentCapability(t *testing.T) {
	h := &fakeHomeserver{capabilitiesBody: `{"capabilities":{"m.change_password":{"enabled":true}}}`}
	dir := newTestDirectory(t, h)

	supported, err := dir.SupportsExtendedProfiles(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if supported {
		t.Error("expected capability disabled when absent")
	}
}

func TestExtendedProperty(t *testing.T) {
	h := &fakeHomeserver{
		propertyBody: `{"` + models.PropertyTitle + `":"Dr."}`,
	}
	dir := newTestDirectory(t, h)

	raw, err := dir.ExtendedProperty(context.Background(), "@alice:x", models.PropertyTitle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `"Dr."` {
		t.Errorf("unexpected raw value: %s", raw)
	}
}

func TestExtendedPropertyMissingKey(t *testing.T) {
	h := &fakeHomeserver{propertyBody: `{}`}
	dir := newTestDirectory(t, h)

	raw, err := dir.ExtendedProperty(context.Background(), "@alice:x", models.PropertyTitle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw != nil {
		t.Errorf("expected nil raw value for missing key, got %s", raw)
	}
}

func TestSetExtendedProperty(t *testing.T) {
	h := &fakeHomeserver{propertyBody: `{}`}
	dir := newTestDirectory(t, h)

	err := dir.SetExtendedProperty(context.Background(), models.PropertyTitle, models.StringValue("Dr."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.lastMethod != http.MethodPut {
		t.Errorf("expected PUT, got %s", h.lastMethod)
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(h.lastBody, &body); err != nil {
		t.Fatalf("invalid request body: %v", err)
	}
	if string(body[models.PropertyTitle]) != `"Dr."` {
		t.Errorf("unexpected body: %s", h.lastBody)
	}
}

func TestDeleteExtendedProperty(t *testing.T) {
	h := &fakeHomeserver{propertyBody: `{}`}
	dir := newTestDirectory(t, h)

	if err := dir.DeleteExtendedProperty(context.Background(), models.PropertyTitle); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.lastMethod != http.MethodDelete {
		t.Errorf("expected DELETE, got %s", h.lastMethod)
	}
}

func TestSafeUserID(t *testing.T) {
	dir := newTestDirectory(t, &fakeHomeserver{})
	if dir.SafeUserID() != testLocalUser {
		t.Errorf("unexpected user ID: %s", dir.SafeUserID())
	}
}

func TestRoomsNilSource(t *testing.T) {
	dir := newTestDirectory(t, &fakeHomeserver{})
	if rooms := dir.Rooms(); rooms != nil {
		t.Errorf("expected nil rooms without a source, got %v", rooms)
	}
}
