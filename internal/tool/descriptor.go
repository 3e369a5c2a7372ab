// Package tool builds the remote MCP tool descriptors handed to the model.
package tool

import (
	"fmt"

	"github.com/hal9000y/mail-assistant/internal/apperr"
)

// Kind is a supported integration.
type Kind string

const (
	KindGmail    Kind = "gmail"
	KindCalendar Kind = "calendar"
)

// Kinds lists every integration offered to the model, in manifest order.
var Kinds = []Kind{KindGmail, KindCalendar}

// Header names understood by the remote MCP server and actions API.
const (
	HeaderProjectID      = "x-pd-project-id"
	HeaderEnvironment    = "x-pd-environment"
	HeaderExternalUserID = "x-pd-external-user-id"
	HeaderAppSlug        = "x-pd-app-slug"
)

// Identity is the fixed downstream identity every call acts as.
type Identity struct {
	ProjectID      string
	Environment    string
	ExternalUserID string
}

// Descriptor is a hosted MCP tool definition bound to one token.
type Descriptor struct {
	Type            string            `json:"type"`
	ServerURL       string            `json:"server_url"`
	ServerLabel     string            `json:"server_label"`
	Headers         map[string]string `json:"headers"`
	RequireApproval string            `json:"require_approval"`
}

type integration struct {
	label   string
	appSlug string
}

var integrations = map[Kind]integration{
	KindGmail:    {label: "Gmail", appSlug: "gmail"},
	KindCalendar: {label: "Google_Calendar", appSlug: "google_calendar"},
}

// Factory builds descriptors. It holds only process-wide constants.
type Factory struct {
	serverURL string
	identity  Identity
}

// NewFactory creates a Factory for the MCP server at serverURL.
func NewFactory(serverURL string, identity Identity) *Factory {
	return &Factory{serverURL: serverURL, identity: identity}
}

// Build returns the descriptor of kind authorized with token.
func (f *Factory) Build(kind Kind, token string) (Descriptor, error) {
	s, ok := integrations[kind]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", apperr.ErrUnsupportedTool, kind)
	}

	return Descriptor{
		Type:            "mcp",
		ServerURL:       f.serverURL,
		ServerLabel:     s.label,
		Headers:         Headers(f.identity, token, s.appSlug),
		RequireApproval: "never",
	}, nil
}

// BuildAll returns descriptors for every kind in Kinds.
func (f *Factory) BuildAll(token string) ([]Descriptor, error) {
	out := make([]Descriptor, 0, len(Kinds))
	for _, k := range Kinds {
		d, err := f.Build(k, token)
		if err != nil {
			return nil, fmt.Errorf("Build(%s) failed: %w", k, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Headers returns the authorization and identity headers for appSlug.
func Headers(identity Identity, token, appSlug string) map[string]string {
	return map[string]string{
		"Authorization":      "Bearer " + token,
		HeaderProjectID:      identity.ProjectID,
		HeaderEnvironment:    identity.Environment,
		HeaderExternalUserID: identity.ExternalUserID,
		HeaderAppSlug:        appSlug,
	}
}
