package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	goi18n "github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var LocalesFS embed.FS

// Message IDs used across the surfaces.
const (
	AppTitle         = "app_title"
	AppSubtitle      = "app_subtitle"
	SeedGreeting     = "seed_greeting"
	Disclaimer       = "disclaimer"
	InputPlaceholder = "input_placeholder"
	TypingIndicator  = "typing_indicator"
	SendButton       = "send_button"
	ReplyPending     = "reply_pending"
	RateLimited      = "rate_limited"
	SessionEnded     = "session_ended"
	NoSession        = "no_session"
	TerminalHelp     = "terminal_help"
	TerminalGoodbye  = "terminal_goodbye"
	BotHelp          = "bot_help"
	ErrorGeneric     = "error_generic"
)

// englishOnly keys are safety and conversation copy that must match the
// English reply pool; locale files cannot override them.
var englishOnly = map[string]bool{
	SeedGreeting: true,
	Disclaimer:   true,
}

// Translator resolves UI copy for one language, falling back to English
// for keys the language file does not define.
type Translator struct {
	localizer *goi18n.Localizer
	english   *goi18n.Localizer
	lang      string
}

// NewTranslator loads every locales/*.yaml file from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	bundle := goi18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no translation files found")
	}
	for _, f := range files {
		data, err := fs.ReadFile(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("failed to read translation file %s: %w", f, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, path.Base(f)); err != nil {
			return nil, fmt.Errorf("failed to parse translation file %s: %w", f, err)
		}
	}

	tag, err := language.Parse(langCode)
	if err != nil {
		return nil, fmt.Errorf("unknown language %q: %w", langCode, err)
	}
	return &Translator{
		localizer: goi18n.NewLocalizer(bundle, tag.String(), language.English.String()),
		english:   goi18n.NewLocalizer(bundle, language.English.String()),
		lang:      tag.String(),
	}, nil
}

// Default uses the embedded locale files.
func Default(langCode string) (*Translator, error) {
	return NewTranslator(LocalesFS, langCode)
}

// T returns the message for key, or key itself when no language defines it.
// data fills {{.Field}} placeholders.
func (t *Translator) T(key string, data ...map[string]any) string {
	cfg := &goi18n.LocalizeConfig{MessageID: key}
	if len(data) > 0 {
		cfg.TemplateData = data[0]
	}
	loc := t.localizer
	if englishOnly[key] {
		loc = t.english
	}
	// a fallback-language hit comes back with a MessageNotFoundErr and text
	s, _ := loc.Localize(cfg)
	if s == "" {
		return key
	}
	return s
}

func (t *Translator) Lang() string { return t.lang }
