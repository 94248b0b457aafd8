// Package scheduler gates outbound calls to upstream disruption feeds.
//
// Each source carries a daily quota, a minimum interval between calls, and a
// time-of-day polling window. CanPoll answers whether a call is currently
// permitted and why not; RecordAttempt charges the quota after every
// attempted call, successful or not, so a failing upstream is not hammered.
// An emergency override bypasses window and quota checks but never the
// minimum interval.
package scheduler
