package mailer

import (
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"meetapp/pkg/tasks"
)

// SubscriptionTemplate is the template used for new-subscription mails.
const SubscriptionTemplate = "subscription"

const (
	keySubject   = "subscription.subject"
	keyGreeting  = "subscription.greeting"
	keyIntro     = "subscription.intro"
	keySignature = "subscription.signature"
)

var (
	portuguese = language.MustParse("pt-BR")
	english    = language.MustParse("en-US")

	// The first entry is the matcher's fallback.
	supportedLocales = []language.Tag{portuguese, english}

	dateLayouts = map[language.Tag]struct {
		layout string
		locale monday.Locale
	}{
		portuguese: {"02 de January, às 15:04h", monday.LocalePtBR},
		english:    {"January 2, at 3:04 PM", monday.LocaleEnUS},
	}
)

// Message is a rendered notification ready for the Sender.
type Message struct {
	ToAddress string
	ToName    string
	Subject   string
	Template  string
	Context   map[string]string
}

// Renderer turns subscription snapshots into localized messages. Dates are
// shown in loc.
type Renderer struct {
	catalog       *catalog.Builder
	matcher       language.Matcher
	defaultLocale string
	loc           *time.Location
}

func NewRenderer(defaultLocale string, loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	b := catalog.NewBuilder(catalog.Fallback(portuguese))
	entries := []struct {
		tag      language.Tag
		key, msg string
	}{
		{portuguese, keySubject, "Nova Inscrição"},
		{portuguese, keyGreeting, "Olá, %s"},
		{portuguese, keyIntro, "%s acabou de se inscrever no seu meetup %s, que acontece em %s."},
		{portuguese, keySignature, "Equipe MeetApp"},
		{english, keySubject, "New subscription"},
		{english, keyGreeting, "Hello, %s"},
		{english, keyIntro, "%s just subscribed to your meetup %s, happening on %s."},
		{english, keySignature, "The MeetApp team"},
	}
	for _, e := range entries {
		if err := b.SetString(e.tag, e.key, e.msg); err != nil {
			return nil, fmt.Errorf("register %s message %q: %w", e.tag, e.key, err)
		}
	}
	return &Renderer{
		catalog:       b,
		matcher:       language.NewMatcher(supportedLocales),
		defaultLocale: defaultLocale,
		loc:           loc,
	}, nil
}

// Render builds the mail telling the organizer that userName subscribed to
// the meetup. locale is the organizer's; unknown locales fall back to the
// closest supported one.
func (r *Renderer) Render(meetup tasks.MeetupSnapshot, userName, locale string) (*Message, error) {
	if strings.TrimSpace(meetup.OrganizerEmail) == "" {
		return nil, fmt.Errorf("%w: meetup %d has no organizer email", ErrRender, meetup.ID)
	}
	if meetup.Date.IsZero() {
		return nil, fmt.Errorf("%w: meetup %d has no date", ErrRender, meetup.ID)
	}

	tag := r.match(locale)
	p := message.NewPrinter(tag, message.Catalog(r.catalog))
	date := formatDate(tag, meetup.Date.In(r.loc))
	subject := p.Sprintf(keySubject)

	data := map[string]string{
		"lang":      tag.String(),
		"subject":   subject,
		"organizer": meetup.OrganizerName,
		"meetup":    meetup.Title,
		"user":      userName,
		"date":      date,
		"greeting":  p.Sprintf(keyGreeting, meetup.OrganizerName),
		"intro":     p.Sprintf(keyIntro, userName, meetup.Title, date),
		"signature": p.Sprintf(keySignature),
	}

	return &Message{
		ToAddress: meetup.OrganizerEmail,
		ToName:    meetup.OrganizerName,
		Subject:   subject,
		Template:  SubscriptionTemplate,
		Context:   data,
	}, nil
}

func (r *Renderer) match(locale string) language.Tag {
	if strings.TrimSpace(locale) == "" {
		locale = r.defaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Make(r.defaultLocale)
	}
	_, idx, _ := r.matcher.Match(tag)
	return supportedLocales[idx]
}

func formatDate(tag language.Tag, t time.Time) string {
	f := dateLayouts[tag]
	return monday.Format(t, f.layout, f.locale)
}
