package lib

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

var calsvc *calendar.Service

func getCalendarClient(conf *oauth2.Config) (*http.Client, error) {
	tokFile, err := os.Open("token.json")
	if err != nil {
		return nil, err
	}
	defer tokFile.Close()
	tok := &oauth2.Token{}
	if err := json.NewDecoder(tokFile).Decode(tok); err != nil {
		return nil, err
	}

	cli := conf.Client(context.Background(), tok)
	return cli, nil
}

func gapiGetCalendarService() (svc *calendar.Service, err error) {
	if calsvc != nil {
		return calsvc, nil
	}
	secretsPath := os.Getenv("SECRETS_DIR")
	b, err := os.ReadFile(path.Join(secretsPath, "admin-sdk-credentials.json"))
	if err != nil {
		return nil, err
	}
	conf, err := google.ConfigFromJSON(b)
	if err != nil {
		return nil, err
	}
	cli, err := getCalendarClient(conf)
	if err != nil {
		return nil, err
	}
	srv, err := calendar.NewService(context.Background(), option.WithHTTPClient(cli))
	if err != nil {
		return nil, err
	}
	calsvc = srv
	return srv, nil
}

// GAPICreateAppointmentEvent drops a confirmed appointment on the platform
// calendar. Best effort only; callers log and move on.
func GAPICreateAppointmentEvent(summary string, location string, start time.Time, duration time.Duration) (string, error) {
	svc, err := gapiGetCalendarService()
	if err != nil {
		return "", err
	}
	if duration == 0 {
		duration = time.Hour
	}
	event := &calendar.Event{
		Summary:  summary,
		Location: location,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: start.Add(duration).Format(time.RFC3339),
		},
	}
	calendarId := os.Getenv("GOOGLE_CALENDAR_ID")
	if calendarId == "" {
		calendarId = "primary"
	}
	created, err := svc.Events.Insert(calendarId, event).Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}
