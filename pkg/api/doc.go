/*
Package api exposes the party pool over HTTP.

Routes:

	GET    /v1/clusters               joinable clusters, newest first
	POST   /v1/clusters/{id}/join     join a specific cluster
	POST   /v1/joins                  join any cluster with room
	GET    /v1/party/{userId}         joined / open / closed
	GET    /v1/deployments/{jobId}    deployment job stage
	GET    /metrics                   Prometheus metrics
	GET    /healthz                   liveness
	GET    /readyz                    readiness

Join refusals surface as structured errors: the reason code rides in the
JSON body and picks the status code (404 for an unknown cluster, 502 when
the notification mail could not be sent, 409 for everything else). Anything
unclassified is a 500 with no internal detail leaked. A random join against
a pool with no room is not a refusal: it answers 200 with the closed party
view.

The server depends on narrow service interfaces rather than the concrete
orchestrator and pipeline, which keeps handler tests to stubs.
*/
package api
