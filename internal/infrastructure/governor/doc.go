/*
Package governor provides adaptive per-source admission control for
outbound requests.

# Overview

This package coordinates every call made to an upstream data source. Each
source is configured with an admission budget (rolling request window,
concurrency cap, minimum spacing) and governed by a shared failure policy
(exponential backoff, breaker trip threshold). Callers acquire permission
before calling the source and report the outcome afterwards; the governor
adapts admission from those outcomes.

# Features

- Rolling-window request quotas per source
- Concurrency caps with strict FIFO waiting
- Minimum spacing between consecutive admissions
- Exponential backoff on consecutive failures, amplified on throttling
- Two-state breaker (Closed, Open) that drains waiters when it trips
- Recovery on the next reported success, with no probe state
- State change and backoff callbacks for monitoring

# Usage

	// Configure the governed sources
	gov := governor.New(map[string]governor.Limits{
		"coindesk": {
			RequestsPerWindow: 30,
			Window:            time.Minute,
			MaxConcurrent:     4,
			MinInterval:       500 * time.Millisecond,
		},
	})

	// Gate every outbound call
	if err := gov.Acquire("coindesk"); err != nil {
		return err // breaker open
	}
	resp, err := client.Get(url)
	switch {
	case err != nil:
		gov.ReportFailure("coindesk", 0)
	case resp.StatusCode() >= 500:
		gov.ReportFailure("coindesk", resp.StatusCode())
	default:
		gov.ReportSuccess("coindesk")
	}

# States

- Closed: normal operation, Acquire blocks until the budget admits the call
- Open: too many consecutive failures, Acquire fails immediately

The breaker opens when consecutive failures reach the policy threshold and
closes on the next reported success:

	Closed --[failures reach threshold]-> Open --[success reported]-> Closed

# Contract

Every successful Acquire must be followed by exactly one ReportSuccess or
ReportFailure once the call completes. Skipping the report leaks the
concurrency slot; reporting twice is tolerated but skews failure counting.
*/
package governor
