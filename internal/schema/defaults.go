package schema

// Default settings applied to authored schemas that omit them
const (
	DefaultSubmitButtonText = "Soumettre"
	DefaultSuccessMessage   = "Formulaire soumis avec succès !"
	DefaultPrimaryColor     = "#2563eb"
	DefaultFontFamily       = "Inter"
	DefaultBorderRadius     = "8px"
)

// DefaultSettings returns the settings used when none are provided
func DefaultSettings() Settings {
	return Settings{
		SubmitButtonText:   DefaultSubmitButtonText,
		SuccessMessage:     DefaultSuccessMessage,
		NotifyOnSubmission: []string{},
		Theme:              DefaultTheme(),
	}
}

// DefaultTheme returns the default visual theme
func DefaultTheme() *Theme {
	return &Theme{
		PrimaryColor: DefaultPrimaryColor,
		FontFamily:   DefaultFontFamily,
		BorderRadius: DefaultBorderRadius,
	}
}

// Normalize fills absent layout and settings values in place. Fields are
// never touched.
func Normalize(s *Schema) {
	if s.Layout.Type == "" {
		s.Layout.Type = LayoutSingle
	}
	if s.Settings.SubmitButtonText == "" {
		s.Settings.SubmitButtonText = DefaultSubmitButtonText
	}
	if s.Settings.SuccessMessage == "" {
		s.Settings.SuccessMessage = DefaultSuccessMessage
	}
	if s.Settings.NotifyOnSubmission == nil {
		s.Settings.NotifyOnSubmission = []string{}
	}
	if s.Settings.Theme == nil {
		s.Settings.Theme = DefaultTheme()
	}
}
