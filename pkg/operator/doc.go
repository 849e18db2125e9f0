/*
Package operator abstracts the infrastructure that provisions clusters and
manages applications on them.

Two interfaces split the surface: ClusterOperator creates, inspects, and
tears down named clusters; ApplicationOperator moves packages into a
cluster's image store and manages application types and instances behind
its management endpoint.

Three implementations exist for each concern:

  - Sim*: deterministic in-memory operators for tests and --simulate mode.
    Readiness and deletion are driven by status polls, so tests control the
    clock by calling.
  - Remote*: HTTP/JSON clients against external provisioning and
    application-management APIs.

# Error taxonomy

Callers branch on sentinel errors rather than on messages:

	ErrTransient                    retry on the next tick
	ErrImageStoreNotReady           transient; the copy stage retries as-is
	ErrClusterNameTaken             terminal; abandon the record
	ErrApplicationAlreadyRegistered treat as success
	ErrApplicationAlreadyExists     treat as success

IsTransient classifies an error chain: ErrTransient and per-call deadline
overruns are retryable, cooperative cancellation never is. Remote operators
map transport failures and 5xx responses to ErrTransient and conflict
responses to the terminal sentinels.
*/
package operator
