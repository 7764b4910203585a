package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"sync"
	texttemplate "text/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"gigbook/internal/models"
)

var (
	markdownOnce sync.Once
	markdown     goldmark.Markdown
)

func markdownRenderer() goldmark.Markdown {
	markdownOnce.Do(func() {
		// Raw HTML in descriptions is dropped; goldmark only emits it with html.WithUnsafe.
		markdown = goldmark.New(goldmark.WithExtensions(extension.Linkify, extension.Strikethrough))
	})
	return markdown
}

// RenderDescription converts a Markdown gig description to HTML.
func RenderDescription(src string) (template.HTML, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := markdownRenderer().Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// FormatDate renders a YYYY-MM-DD date as "Friday, 1 May 2026".
func FormatDate(date string) string {
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("Monday, 2 January 2006")
}

type emailData struct {
	Gig         *models.Gig
	Date        string
	Description template.HTML
	Name        string
	Position    int
	SiteURL     string
}

const layout = `{{define "layout"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
{{template "body" .}}
<p style="color: #888; margin-top: 30px; font-size: 12px;">MLM Comedy - Christchurch's Premier Comedy Production Company</p>
</div>{{end}}
{{define "gig"}}<div style="background: #1a1a1a; padding: 20px; border-radius: 10px; color: #fff;">
<h2 style="color: #ff00ff;">{{.Gig.Venue}}</h2>
<p><strong>Date:</strong> {{.Date}}</p>
<p><strong>Time:</strong> {{.Gig.Time}}</p>
{{- if .Position}}
<p><strong>Your Position:</strong> #{{.Position}}</p>
{{- end}}
{{- if .Description}}
<div><strong>Details:</strong> {{.Description}}</div>
{{- end}}
</div>{{end}}
{{define "button"}}<p style="margin-top: 20px;"><a href="{{.URL}}" style="background: linear-gradient(45deg, #00ffff, #ff00ff); color: #000; padding: 15px 30px; text-decoration: none; border-radius: 5px; font-weight: bold;">{{.Label}}</a></p>{{end}}`

var bodies = map[Type]struct {
	subject string
	body    string
}{
	TypeNewGig: {
		subject: "🎤 New Gig Posted: {{.Gig.Venue}} - {{.Date}}",
		body: `<h1 style="color: #00ffff;">New Gig Available!</h1>
{{template "gig" .}}
<p><strong>Slots Available:</strong> {{.Gig.SlotsAvailable}}</p>
{{template "button" (link .SiteURL "Request Your Spot")}}`,
	},
	TypeBookingApproved: {
		subject: "✅ You're Booked: {{.Gig.Venue}} - {{.Date}}",
		body: `<h1 style="color: #00ff00;">Booking Confirmed!</h1>
<p>Great news, {{.Name}}! Your spot has been approved.</p>
{{template "gig" .}}
{{template "button" (link .SiteURL "View My Gigs")}}`,
	},
	TypeLineupUpdated: {
		subject: "📋 Lineup Updated: {{.Gig.Venue}} - {{.Date}}",
		body: `<h1 style="color: #00ffff;">Lineup Update</h1>
<p>Hi {{.Name}}, the running order for your upcoming gig has been updated.</p>
{{template "gig" .}}
{{template "button" (link .SiteURL "View Full Lineup")}}`,
	},
	TypeGigReminder: {
		subject: "⏰ Reminder: Tomorrow - {{.Gig.Venue}}",
		body: `<h1 style="color: #ffff00;">Gig Tomorrow!</h1>
<p>Hi {{.Name}}, just a friendly reminder about your gig tomorrow.</p>
{{template "gig" .}}
<p style="margin-top: 20px;">Break a leg! 🎤</p>`,
	},
}

type buttonLink struct {
	URL   string
	Label string
}

var funcs = template.FuncMap{
	"link": func(site, label string) buttonLink {
		return buttonLink{URL: site + "/portal.html", Label: label}
	},
}

type compiled struct {
	subject *texttemplate.Template
	body    *template.Template
}

var (
	compileOnce sync.Once
	templates   map[Type]compiled
	compileErr  error
)

func compileTemplates() (map[Type]compiled, error) {
	compileOnce.Do(func() {
		templates = make(map[Type]compiled, len(bodies))
		for typ, src := range bodies {
			subj, err := texttemplate.New(string(typ) + "-subject").Parse(src.subject)
			if err != nil {
				compileErr = fmt.Errorf("subject %s: %w", typ, err)
				return
			}
			body, err := template.New(string(typ)).Funcs(funcs).Parse(layout)
			if err == nil {
				_, err = body.New("body").Parse(src.body)
			}
			if err != nil {
				compileErr = fmt.Errorf("body %s: %w", typ, err)
				return
			}
			templates[typ] = compiled{subject: subj, body: body}
		}
	})
	return templates, compileErr
}

func render(typ Type, data emailData) (subject, html string, err error) {
	ts, err := compileTemplates()
	if err != nil {
		return "", "", err
	}
	t, ok := ts[typ]
	if !ok {
		return "", "", fmt.Errorf("no template for %s", typ)
	}

	var sb, hb bytes.Buffer
	if err := t.subject.Execute(&sb, data); err != nil {
		return "", "", err
	}
	if err := t.body.ExecuteTemplate(&hb, "layout", data); err != nil {
		return "", "", err
	}
	return sb.String(), hb.String(), nil
}
