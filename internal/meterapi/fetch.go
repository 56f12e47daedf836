package meterapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// OrgFilter narrows FetchOrganizations. ID takes precedence over Name when
// both are set; Name is query-escaped by the URL encoder.
type OrgFilter struct {
	ID   string
	Name string
}

// FetchOrganizations lists organizations viewable by the session. A singular
// lookup: failures propagate to the caller.
func (c *Client) FetchOrganizations(ctx context.Context, filter OrgFilter) ([]Organization, error) {
	query := url.Values{}
	switch {
	case filter.ID != "":
		query.Set("id", filter.ID)
	case filter.Name != "":
		query.Set("name", filter.Name)
	}
	var resp organizationsResponse
	if err := c.get(ctx, "organizations", "organizations/", query, &resp); err != nil {
		return nil, err
	}
	return resp.Organizations, nil
}

// FetchChannels lists one organization's channels. The API is asked for an
// unbounded page (limit=0).
func (c *Client) FetchChannels(ctx context.Context, orgID string) ([]Channel, error) {
	query := url.Values{}
	query.Set("organization", orgID)
	query.Set("limit", "0")
	var resp channelsResponse
	if err := c.get(ctx, "channels", "channels/", query, &resp); err != nil {
		return nil, err
	}
	return resp.Channels, nil
}

// FetchFields discovers the fields available on a channel via a metadata
// request. A singular lookup: failures propagate.
func (c *Client) FetchFields(ctx context.Context, channelID string) ([]string, error) {
	var resp readingsMetaResponse
	path := fmt.Sprintf("readings/%s/", channelID)
	if err := c.options(ctx, "reading_fields", path, &resp); err != nil {
		return nil, err
	}
	if len(resp.Filters.Fields) == 0 {
		return nil, fmt.Errorf("%w: no reading fields for channel %s", ErrMissingField, channelID)
	}
	return resp.Filters.Fields, nil
}

// FetchReadings retrieves summarized time-series data for one channel and
// date range. When fields is empty the channel's available fields are
// discovered first; a discovery failure propagates.
func (c *Client) FetchReadings(ctx context.Context, channelID string, start, end int64, fields []string, resolution int) (*ReadingSet, error) {
	if len(fields) == 0 {
		discovered, err := c.FetchFields(ctx, channelID)
		if err != nil {
			return nil, err
		}
		fields = discovered
	}
	query := url.Values{}
	query.Set("action", "summarise")
	for _, field := range fields {
		query.Add("fields[]", field)
	}
	query.Add("daterange[]", strconv.FormatInt(start, 10))
	query.Add("daterange[]", strconv.FormatInt(end, 10))
	query.Set("res", strconv.Itoa(resolution))

	var resp ReadingSet
	path := fmt.Sprintf("readings/%s/", channelID)
	if err := c.get(ctx, "readings", path, query, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchAlarms lists one organization's alarms.
func (c *Client) FetchAlarms(ctx context.Context, orgID string) ([]Alarm, error) {
	query := url.Values{}
	query.Set("organization", orgID)
	query.Set("limit", "0")
	var resp alarmsResponse
	if err := c.get(ctx, "alarms", "alarms/", query, &resp); err != nil {
		return nil, err
	}
	return resp.Alarms, nil
}

// FetchAlarmRule retrieves the threshold rule attached to one alarm.
func (c *Client) FetchAlarmRule(ctx context.Context, alarmID ID) (*Rule, error) {
	var resp alarmRulesResponse
	path := fmt.Sprintf("alarms/%s/alarmrules/", alarmID)
	if err := c.get(ctx, "alarm_rules", path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.AlarmRules) == 0 {
		return nil, fmt.Errorf("%w: no rule for alarm %s", ErrMissingField, alarmID)
	}
	return &resp.AlarmRules[0], nil
}

// FetchAlarmPeriod retrieves the schedule period attached to one alarm.
func (c *Client) FetchAlarmPeriod(ctx context.Context, alarmID ID) (*Period, error) {
	var resp alarmPeriodsResponse
	path := fmt.Sprintf("alarms/%s/alarmperiods/", alarmID)
	if err := c.get(ctx, "alarm_periods", path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.AlarmPeriods) == 0 {
		return nil, fmt.Errorf("%w: no period for alarm %s", ErrMissingField, alarmID)
	}
	return &resp.AlarmPeriods[0], nil
}
