/*
Package sources contains one adapter per upstream disruption feed.

Every adapter implements the same contract: build the provider-specific
request, parse the provider's schema into raw incidents, enrich each one
into a canonical alert via the location resolver and route matcher, and
report a per-call diagnostic. Adapters run to completion independently; a
timeout, HTTP error, or malformed payload is reported through the
diagnostic, never propagated to abort the polling cycle.

Supported feeds:

  - TomTom incident details (bounding box, key as query parameter)
  - HERE traffic incidents (circle filter, apiKey query parameter)
  - MapQuest traffic incidents (bounding box, key query parameter)
  - roadworks notification feed (JSON list, API key header)
  - transit-agency GTFS-RT Service Alerts (protobuf)
  - manual control-room incidents (in-process collaborator)
*/
package sources
