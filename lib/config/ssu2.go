// Package config loads SSU2 timing configuration through viper, so the
// retransmission schedules stay tunable per deployment without touching the
// state machine logic.
package config

import (
	"time"

	"github.com/go-i2p/logger"
	"github.com/spf13/viper"

	"github.com/go-i2p/go-ssu2/lib/ssu2"
)

var log = logger.GetGoI2PLogger()

// Viper keys for SSU2 timing. Delay lists are string slices of Go durations
// (e.g. ["2.5s", "5s", "6.25s"]).
const (
	KeyRetryTimeout = "ssu2.retry_timeout"

	KeyTokenRequestInitial = "ssu2.retransmit.token_request.initial"
	KeyTokenRequestDelays  = "ssu2.retransmit.token_request.delays"

	KeySessionRequestInitial = "ssu2.retransmit.session_request.initial"
	KeySessionRequestDelays  = "ssu2.retransmit.session_request.delays"

	KeySessionCreatedInitial = "ssu2.retransmit.session_created.initial"
	KeySessionCreatedDelays  = "ssu2.retransmit.session_created.delays"

	KeySessionConfirmedInitial = "ssu2.retransmit.session_confirmed.initial"
	KeySessionConfirmedDelays  = "ssu2.retransmit.session_confirmed.delays"
)

// SetSSU2Defaults registers the spec-mandated timing as viper defaults.
// Call once before reading the config file.
func SetSSU2Defaults() {
	defaults := ssu2.DefaultSchedules()

	viper.SetDefault(KeyRetryTimeout, defaults.RetryTimeout)

	viper.SetDefault(KeyTokenRequestInitial, defaults.TokenRequest.InitialDelay)
	viper.SetDefault(KeyTokenRequestDelays, durationStrings(defaults.TokenRequest.Delays))

	viper.SetDefault(KeySessionRequestInitial, defaults.SessionRequest.InitialDelay)
	viper.SetDefault(KeySessionRequestDelays, durationStrings(defaults.SessionRequest.Delays))

	viper.SetDefault(KeySessionCreatedInitial, defaults.SessionCreated.InitialDelay)
	viper.SetDefault(KeySessionCreatedDelays, durationStrings(defaults.SessionCreated.Delays))

	viper.SetDefault(KeySessionConfirmedInitial, defaults.SessionConfirmed.InitialDelay)
	viper.SetDefault(KeySessionConfirmedDelays, durationStrings(defaults.SessionConfirmed.Delays))
}

// NewScheduleTableFromViper builds the retransmission timing from current
// viper settings. Unparseable delay entries fall back to the spec defaults
// for that message type, with a warning.
func NewScheduleTableFromViper() ssu2.ScheduleTable {
	defaults := ssu2.DefaultSchedules()

	table := ssu2.ScheduleTable{
		RetryTimeout: viper.GetDuration(KeyRetryTimeout),
		TokenRequest: scheduleFromViper(
			KeyTokenRequestInitial, KeyTokenRequestDelays, defaults.TokenRequest),
		SessionRequest: scheduleFromViper(
			KeySessionRequestInitial, KeySessionRequestDelays, defaults.SessionRequest),
		SessionCreated: scheduleFromViper(
			KeySessionCreatedInitial, KeySessionCreatedDelays, defaults.SessionCreated),
		SessionConfirmed: scheduleFromViper(
			KeySessionConfirmedInitial, KeySessionConfirmedDelays, defaults.SessionConfirmed),
	}

	if table.RetryTimeout <= 0 {
		table.RetryTimeout = defaults.RetryTimeout
	}
	return table
}

func scheduleFromViper(initialKey, delaysKey string, fallback ssu2.RetransmissionSchedule) ssu2.RetransmissionSchedule {
	schedule := ssu2.RetransmissionSchedule{
		InitialDelay: viper.GetDuration(initialKey),
	}
	if schedule.InitialDelay <= 0 {
		schedule.InitialDelay = fallback.InitialDelay
	}

	raw := viper.GetStringSlice(delaysKey)
	if len(raw) == 0 {
		schedule.Delays = append([]time.Duration(nil), fallback.Delays...)
		return schedule
	}

	delays := make([]time.Duration, 0, len(raw))
	for _, entry := range raw {
		d, err := time.ParseDuration(entry)
		if err != nil || d <= 0 {
			log.Warnf("invalid retransmit delay %q for %s, using defaults", entry, delaysKey)
			schedule.Delays = append([]time.Duration(nil), fallback.Delays...)
			return schedule
		}
		delays = append(delays, d)
	}
	schedule.Delays = delays
	return schedule
}

func durationStrings(delays []time.Duration) []string {
	out := make([]string, len(delays))
	for i, d := range delays {
		out[i] = d.String()
	}
	return out
}
