package us

import (
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"quantmom/internal/domain"
)

// LatestFinishedTradingDay returns the most recent trading day whose session
// has ended, per the Alpaca trading calendar. Extended-hours data keeps
// settling after the close, so "finished" means after 20:05 ET.
func LatestFinishedTradingDay(apiKey, apiSecret, baseURL string) (domain.DateInt, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})

	et, err := time.LoadLocation("America/New_York")
	if err != nil {
		return 0, fmt.Errorf("loading ET timezone: %w", err)
	}

	now := time.Now().In(et)
	calendar, err := client.GetCalendar(alpaca.GetCalendarRequest{
		Start: now.AddDate(0, 0, -7),
		End:   now,
	})
	if err != nil {
		return 0, fmt.Errorf("GetCalendar: %w", err)
	}
	if len(calendar) == 0 {
		return 0, fmt.Errorf("no trading days returned from calendar")
	}

	today := now.Format("2006-01-02")
	settled := time.Date(now.Year(), now.Month(), now.Day(), 20, 5, 0, 0, et)

	for i := len(calendar) - 1; i >= 0; i-- {
		day, err := time.Parse("2006-01-02", calendar[i].Date)
		if err != nil {
			continue
		}
		if calendar[i].Date == today {
			if now.After(settled) {
				return domain.DateOf(day), nil
			}
			continue
		}
		if day.Before(now) {
			return domain.DateOf(day), nil
		}
	}

	return 0, fmt.Errorf("could not determine latest finished trading day")
}
