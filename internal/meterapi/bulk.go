package meterapi

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"energywatch/internal/observability/metrics"
)

// maxInFlightReadings caps concurrent reading requests regardless of how
// many channel/date-range tasks are queued.
const maxInFlightReadings = 20

// ChannelBatch is one organization's slot in a channel fan-out. Either
// Channels or Err is set; slot order across workers is not guaranteed.
type ChannelBatch struct {
	OrgID    string
	Channels []Channel
	Err      error
}

// FetchChannelsBulk fetches every organization's channel list concurrently,
// one worker per organization. A failing worker records an error entry in
// its own slot; no failure aborts the batch.
func (c *Client) FetchChannelsBulk(ctx context.Context, orgIDs []string) []ChannelBatch {
	results := make([]ChannelBatch, 0, len(orgIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, orgID := range orgIDs {
		wg.Add(1)
		go func(orgID string) {
			defer wg.Done()
			channels, err := c.FetchChannels(ctx, orgID)
			if err != nil {
				metrics.IncPartialFailure("channels")
				c.logger.Warn("channel fetch failed",
					zap.String("organization", orgID), zap.Error(err))
			}
			mu.Lock()
			results = append(results, ChannelBatch{OrgID: orgID, Channels: channels, Err: err})
			mu.Unlock()
		}(orgID)
	}
	wg.Wait()
	return results
}

// ReadingsKey identifies one readings task in a bulk fetch.
type ReadingsKey struct {
	ChannelID string
	Start     int64
	End       int64
}

// FetchReadingsBulk fetches the Cartesian product of channels and date
// ranges under a sliding concurrency cap: a fixed pool of workers pulls
// tasks from a shared queue, so at most maxInFlightReadings requests are in
// flight and a new task is submitted as each completes. Failed tasks are
// logged and absent from the result map.
func (c *Client) FetchReadingsBulk(ctx context.Context, channelIDs []string, ranges [][2]int64, fields []string, resolution int) map[ReadingsKey]*ReadingSet {
	tasks := make(chan ReadingsKey, len(channelIDs)*len(ranges))
	for _, channelID := range channelIDs {
		for _, dr := range ranges {
			tasks <- ReadingsKey{ChannelID: channelID, Start: dr[0], End: dr[1]}
		}
	}
	close(tasks)

	workers := maxInFlightReadings
	if n := len(channelIDs) * len(ranges); n < workers {
		workers = n
	}

	results := make(map[ReadingsKey]*ReadingSet, len(channelIDs)*len(ranges))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				set, err := c.FetchReadings(ctx, task.ChannelID, task.Start, task.End, fields, resolution)
				if err != nil {
					metrics.IncPartialFailure("readings")
					c.logger.Warn("readings fetch failed",
						zap.String("channel", task.ChannelID),
						zap.Int64("start", task.Start),
						zap.Int64("end", task.End),
						zap.Error(err))
					continue
				}
				mu.Lock()
				results[task] = set
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return results
}

// AlarmFailure records one failed fan-out item while fetching alarm data.
type AlarmFailure struct {
	OrgID   string
	AlarmID ID
	Err     error
}

// AlarmData is the assembled result of an alarm-configuration fan-out.
// Alarms missing from Rules or Periods failed a detail fetch and are not
// evaluable.
type AlarmData struct {
	Alarms   []Alarm
	Rules    map[ID]Rule
	Periods  map[ID]Period
	Failures []AlarmFailure
}

// FetchAlarmData resolves each organization's alarm list (one worker per
// organization, partial-failure slots), then fans out two workers per alarm
// fetching its rule and period independently. A failing rule or period fetch
// logs a remediation hint and leaves that alarm unresolvable without
// aborting sibling fetches.
func (c *Client) FetchAlarmData(ctx context.Context, orgIDs []string) AlarmData {
	data := AlarmData{
		Rules:   make(map[ID]Rule),
		Periods: make(map[ID]Period),
	}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, orgID := range orgIDs {
		wg.Add(1)
		go func(orgID string) {
			defer wg.Done()
			alarms, err := c.FetchAlarms(ctx, orgID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.IncPartialFailure("alarms")
				c.logger.Warn("alarm fetch failed",
					zap.String("organization", orgID), zap.Error(err))
				data.Failures = append(data.Failures, AlarmFailure{OrgID: orgID, Err: err})
				return
			}
			data.Alarms = append(data.Alarms, alarms...)
		}(orgID)
	}
	wg.Wait()

	// Rules and periods are independent; two workers per alarm.
	for _, alarm := range data.Alarms {
		wg.Add(2)
		go func(alarmID ID) {
			defer wg.Done()
			rule, err := c.FetchAlarmRule(ctx, alarmID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.recordAlarmFailure(&data, alarmID, err, "alarm rule fetch failed")
				return
			}
			data.Rules[alarmID] = *rule
		}(alarm.ID)
		go func(alarmID ID) {
			defer wg.Done()
			period, err := c.FetchAlarmPeriod(ctx, alarmID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.recordAlarmFailure(&data, alarmID, err, "alarm period fetch failed")
				return
			}
			data.Periods[alarmID] = *period
		}(alarm.ID)
	}
	wg.Wait()
	return data
}

// recordAlarmFailure must be called with the fan-out mutex held.
func (c *Client) recordAlarmFailure(data *AlarmData, alarmID ID, err error, msg string) {
	metrics.IncPartialFailure("alarm_details")
	c.logger.Warn(msg,
		zap.String("alarm", string(alarmID)),
		zap.String("settings", c.settingsLink(alarmID)),
		zap.Error(err))
	data.Failures = append(data.Failures, AlarmFailure{AlarmID: alarmID, Err: err})
}

// FetchEvents lists one organization's events for the given date range.
// When the first response reports additional pages, pages 2..N are fetched
// concurrently and concatenated in arrival order: the event list is an
// unordered set keyed by event id, never by position.
func (c *Client) FetchEvents(ctx context.Context, orgID string, spec DateRangeSpec) ([]Event, error) {
	query := url.Values{}
	query.Set("organization", orgID)
	spec.apply(query)

	var first eventsResponse
	if err := c.get(ctx, "events", "events/", query, &first); err != nil {
		return nil, err
	}
	events := first.Events
	pages := first.Meta.PageCount
	if pages <= 1 {
		return events, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for page := 2; page <= pages; page++ {
		wg.Add(1)
		go func(page int) {
			defer wg.Done()
			pageQuery := url.Values{}
			for key, values := range query {
				pageQuery[key] = values
			}
			pageQuery.Set("page", strconv.Itoa(page))
			var resp eventsResponse
			if err := c.get(ctx, "events", "events/", pageQuery, &resp); err != nil {
				metrics.IncPartialFailure("events")
				c.logger.Warn("event page fetch failed",
					zap.String("organization", orgID),
					zap.Int("page", page),
					zap.Error(err))
				return
			}
			mu.Lock()
			events = append(events, resp.Events...)
			mu.Unlock()
		}(page)
	}
	wg.Wait()
	return events, nil
}
