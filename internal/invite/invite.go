// Package invite builds the outbound surfaces of an event: the Google
// Calendar deep link, the self-referential import URL, per-participant
// mailto:/sms: invite messages and an ICS export.
package invite

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"simplecal/internal/model"
)

const googleCalendarBase = "https://calendar.google.com/calendar/render?action=TEMPLATE"

// GoogleCalendarURL returns a calendar-provider deep link for the event.
// When a start time is present the entry gets a default one-hour duration;
// otherwise it is encoded as an all-day entry on the start date.
func GoogleCalendarURL(ev model.Event) string {
	startDate := strings.ReplaceAll(ev.Date, "-", "")

	dates := startDate + "/" + startDate
	if ev.Time != "" {
		if hh, mm, ok := splitTime(ev.Time); ok {
			// The hour is incremented without day rollover, so a 23:xx start
			// yields an end of T24xx00. Links produced by the browser build
			// encode the same value, and changing it here would make the two
			// disagree on identical events.
			dates = fmt.Sprintf("%sT%02d%02d00/%sT%02d%02d00", startDate, hh, mm, startDate, hh+1, mm)
		}
	}

	u := googleCalendarBase +
		"&text=" + url.QueryEscape(ev.Title) +
		"&dates=" + dates
	if ev.Location != "" {
		u += "&location=" + url.QueryEscape(ev.Location)
	}
	if ev.Note != "" {
		u += "&details=" + url.QueryEscape(ev.Note)
	}
	return u
}

// ImportURL base64-encodes the event (minus its id) into a query parameter
// on baseURL, producing a link that pre-fills the creation flow on another
// instance of the application.
func ImportURL(baseURL string, ev model.Event) (string, error) {
	payload, err := exportJSON(ev)
	if err != nil {
		return "", err
	}
	b64 := base64.StdEncoding.EncodeToString(payload)
	return baseURL + "?import=" + url.QueryEscape(b64), nil
}

// DecodeImport reverses ImportURL's encoding. The result is a patch, never a
// full record: any id carried by the blob is discarded so the import can
// only ever seed a new, unsaved event.
func DecodeImport(b64 string) (model.EventPatch, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		// Senders sometimes strip the padding; try the raw alphabet too.
		raw, err = base64.RawStdEncoding.DecodeString(b64)
		if err != nil {
			return model.EventPatch{}, fmt.Errorf("invite: decode import payload: %w", err)
		}
	}

	var patch model.EventPatch
	if err := json.Unmarshal(raw, &patch); err != nil {
		return model.EventPatch{}, fmt.Errorf("invite: parse import payload: %w", err)
	}
	return patch, nil
}

// MailtoURL builds a mailto: link inviting one participant, embedding both
// the Google Calendar link and the import URL.
func MailtoURL(baseURL string, p model.Participant, ev model.Event) (string, error) {
	importURL, err := ImportURL(baseURL, ev)
	if err != nil {
		return "", err
	}

	subject := "Invitation: " + ev.Title
	body := fmt.Sprintf("Hi %s,\nYou're invited to: %s\nDate: %s\n", p.Name, ev.Title, ev.Date)
	if ev.Location != "" {
		body += "At: " + ev.Location + "\n"
	}
	body += "\nAdd to Google Calendar: " + GoogleCalendarURL(ev) +
		"\n\nImport to Simple Calendar: " + importURL

	return "mailto:" + p.Email +
		"?subject=" + url.QueryEscape(subject) +
		"&body=" + url.QueryEscape(body), nil
}

// SMSURL builds an sms: link for one participant. The ?body= form works
// across most mobile platforms.
func SMSURL(baseURL string, p model.Participant, ev model.Event) (string, error) {
	importURL, err := ImportURL(baseURL, ev)
	if err != nil {
		return "", err
	}

	dateInfo := ev.Date
	if ev.EndDate != "" && ev.EndDate != ev.Date {
		dateInfo += " to " + ev.EndDate
	}
	when := ev.Time
	if ev.IsAllDay {
		when = "All Day"
	}

	text := fmt.Sprintf("Hi %s,\nYou're invited to: %s\nDate: %s %s\n", p.Name, ev.Title, dateInfo, when)
	if ev.Location != "" {
		text += "At: " + ev.Location + "\n"
	}
	text += "\nImport to App: " + importURL + "\n\nGCal: " + GoogleCalendarURL(ev)

	return "sms:" + p.Phone + "?body=" + url.QueryEscape(text), nil
}

// exportJSON serializes the event with the id key removed entirely, matching
// the shape produced by the browser build's share links.
func exportJSON(ev model.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("invite: encode event: %w", err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("invite: reshape event: %w", err)
	}
	delete(fields, "id")
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("invite: encode event: %w", err)
	}
	return out, nil
}

func splitTime(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return h, m, true
}
