package models

import "time"

// JSONMap is a type alias for JSONB columns
type JSONMap map[string]interface{}

// Setting keys a user may override through /frontend_settings/write.
const (
	SettingAuthEnabled     = "AUTH_ENABLED"
	SettingFeedbackEnabled = "FEEDBACK_ENABLED"
	SettingHeaderTitle     = "HEADER_TITLE"
	SettingPageTabTitle    = "PAGE_TAB_TITLE"
	SettingModel           = "AZURE_OPENAI_MODEL"
)

// WritableSettings lists the keys accepted by a settings write, in storage order.
var WritableSettings = []string{
	SettingAuthEnabled,
	SettingFeedbackEnabled,
	SettingHeaderTitle,
	SettingPageTabTitle,
	SettingModel,
}

// UserSettings holds one user's stored overrides in a single JSONB column.
type UserSettings struct {
	UserID    string    `json:"user_id" db:"user_id"`
	Settings  JSONMap   `json:"settings" db:"settings"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// String returns the stored value for key, or "" when absent or not a string.
func (s *UserSettings) String(key string) string {
	if s == nil || s.Settings == nil {
		return ""
	}
	v, _ := s.Settings[key].(string)
	return v
}

// UISettings is the ui block of the frontend settings response.
type UISettings struct {
	Title           string `json:"title"`
	Logo            string `json:"logo,omitempty"`
	ChatLogo        string `json:"chat_logo,omitempty"`
	ChatTitle       string `json:"chat_title"`
	ChatDescription string `json:"chat_description"`
	ShowShareButton bool   `json:"show_share_button"`
}

// FrontendSettings is the effective settings document served to the client.
// Deployments are comma separated; the client splits them into choices.
type FrontendSettings struct {
	AuthEnabled            bool       `json:"auth_enabled"`
	FeedbackEnabled        bool       `json:"feedback_enabled"`
	HeaderTitle            string     `json:"header_title"`
	PageTabTitle           string     `json:"page_tab_title"`
	AzureOpenAIDeployments string     `json:"azure_openai_deployments"`
	AzureOpenAIModel       string     `json:"azure_openai_model"`
	UI                     UISettings `json:"ui"`
}

// WriteSettingsRequest is the /frontend_settings/write body.
type WriteSettingsRequest struct {
	AuthEnabled            bool   `json:"AUTH_ENABLED"`
	FeedbackEnabled        bool   `json:"FEEDBACK_ENABLED"`
	HeaderTitle            string `json:"HEADER_TITLE"`
	PageTabTitle           string `json:"PAGE_TAB_TITLE"`
	AzureOpenAIDeployments string `json:"AZURE_OPENAI_DEPLOYMENTS,omitempty"`
	AzureOpenAIModel       string `json:"AZURE_OPENAI_MODEL"`
}

// Values maps the request onto stored setting values. Flags are stored as "True" or "False".
func (r *WriteSettingsRequest) Values() map[string]string {
	return map[string]string{
		SettingAuthEnabled:     flag(r.AuthEnabled),
		SettingFeedbackEnabled: flag(r.FeedbackEnabled),
		SettingHeaderTitle:     r.HeaderTitle,
		SettingPageTabTitle:    r.PageTabTitle,
		SettingModel:           r.AzureOpenAIModel,
	}
}

func flag(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
