package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/matrix-org/gomatrix"
	"github.com/sirupsen/logrus"

	"healthchat/internal/models"
)

const (
	// Capability advertised by servers implementing per-key extended
	// profile properties (MSC4133).
	extendedProfilesCapability = "uk.tcpip.msc4133.profile_fields"
	// Unstable prefix under which the per-key profile endpoints live.
	extendedProfilesPrefix = "uk.tcpip.msc4133"
)

// MatrixDirectory implements Directory against a Matrix homeserver using
// the gomatrix client. Room state is served from an injected RoomSource so
// known-user checks never hit the network.
type MatrixDirectory struct {
	client *gomatrix.Client
	rooms  RoomSource
	log    *logrus.Entry
}

// MatrixConfig configures a MatrixDirectory.
type MatrixConfig struct {
	HomeserverURL  string
	UserID         string
	AccessToken    string
	RequestTimeout time.Duration
}

// NewMatrixDirectory creates a directory client for the given homeserver.
func NewMatrixDirectory(cfg MatrixConfig, rooms RoomSource) (*MatrixDirectory, error) {
	if cfg.UserID == "" {
		return nil, errors.New("matrix user ID is required")
	}
	if err := models.ValidateUserID(cfg.UserID); err != nil {
		return nil, fmt.Errorf("invalid matrix user ID: %w", err)
	}
	client, err := gomatrix.NewClient(cfg.HomeserverURL, cfg.UserID, cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create matrix client: %w", err)
	}
	if cfg.RequestTimeout > 0 {
		client.Client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &MatrixDirectory{
		client: client,
		rooms:  rooms,
		log:    logrus.WithField("component", "directory"),
	}, nil
}

// ProfileInfo implements Directory.
func (d *MatrixDirectory) ProfileInfo(ctx context.Context, userID string) (models.Profile, error) {
	var resp struct {
		DisplayName string `json:"displayname"`
		AvatarURL   string `json:"avatar_url"`
	}
	u := d.client.BuildBaseURL("_matrix", "client", "v3", "profile", userID)
	if err := d.client.MakeRequest(http.MethodGet, u, nil, &resp); err != nil {
		return models.Profile{}, mapError(err)
	}
	return models.Profile{DisplayName: resp.DisplayName, AvatarURL: resp.AvatarURL}, nil
}

// SupportsExtendedProfiles implements Directory. The probe is scoped to the
// connected homeserver.
func (d *MatrixDirectory) SupportsExtendedProfiles(ctx context.Context) (bool, error) {
	var resp struct {
		Capabilities map[string]json.RawMessage `json:"capabilities"`
	}
	u := d.client.BuildBaseURL("_matrix", "client", "v3", "capabilities")
	if err := d.client.MakeRequest(http.MethodGet, u, nil, &resp); err != nil {
		return false, mapError(err)
	}
	raw, ok := resp.Capabilities[extendedProfilesCapability]
	if !ok {
		return false, nil
	}
	var capability struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(raw, &capability); err != nil {
		d.log.WithError(err).Warn("malformed extended profiles capability")
		return false, nil
	}
	return capability.Enabled, nil
}

// ExtendedProperty implements Directory. A missing key in the response body
// is reported as a nil raw value, not an error.
func (d *MatrixDirectory) ExtendedProperty(ctx context.Context, userID, key string) (json.RawMessage, error) {
	var resp map[string]json.RawMessage
	u := d.propertyURL(userID, key)
	if err := d.client.MakeRequest(http.MethodGet, u, nil, &resp); err != nil {
		return nil, mapError(err)
	}
	return resp[key], nil
}

// SetExtendedProperty implements Directory.
func (d *MatrixDirectory) SetExtendedProperty(ctx context.Context, key string, value models.PropertyValue) error {
	u := d.propertyURL(d.client.UserID, key)
	body := map[string]models.PropertyValue{key: value}
	if err := d.client.MakeRequest(http.MethodPut, u, body, nil); err != nil {
		return mapError(err)
	}
	return nil
}

// DeleteExtendedProperty implements Directory.
func (d *MatrixDirectory) DeleteExtendedProperty(ctx context.Context, key string) error {
	u := d.propertyURL(d.client.UserID, key)
	if err := d.client.MakeRequest(http.MethodDelete, u, nil, nil); err != nil {
		return mapError(err)
	}
	return nil
}

// Rooms implements Directory.
func (d *MatrixDirectory) Rooms() []Room {
	if d.rooms == nil {
		return nil
	}
	return d.rooms.Rooms()
}

// SafeUserID implements Directory.
func (d *MatrixDirectory) SafeUserID() string { return d.client.UserID }

func (d *MatrixDirectory) propertyURL(userID, key string) string {
	return d.client.BuildBaseURL("_matrix", "client", "unstable", extendedProfilesPrefix, "profile", userID, key)
}

// mapError converts gomatrix failures carrying a Matrix errcode into a
// recognized *Error; transport failures pass through unchanged.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var httpErr gomatrix.HTTPError
	if !errors.As(err, &httpErr) {
		return err
	}
	respErr, ok := httpErr.WrappedError.(gomatrix.RespError)
	if !ok {
		// No Matrix errcode in the body (proxy errors and the like);
		// leave the failure unrecognized.
		return err
	}
	return &Error{
		Code:       respErr.ErrCode,
		Message:    respErr.Err,
		StatusCode: httpErr.Code,
	}
}
