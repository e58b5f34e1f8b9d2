// Package core contains the costhook domain model, contracts, and
// orchestration logic: provider instances, the credential vault, cost
// normalization, sync attempts, and status lifecycle. Storage, vendor
// adapters, and transports depend on this package; core must not depend on
// them.
package core
