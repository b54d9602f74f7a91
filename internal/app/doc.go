// Package app provides the composition layer for the tour operations
// backend.
//
// # Architecture Role
//
// The app package sits above the reusable layers (pricing, config,
// logging) and composes them into a running application. It is NOT a
// business logic layer - business logic belongs in internal/app/services/.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	│   ├── customer/       # Customer records
//	│   ├── winery/         # Winery partner records
//	│   ├── fleet/          # Vehicles, drivers, and time cards
//	│   ├── booking/        # Tour bookings and their status machine
//	│   ├── proposal/       # Quote proposals sent to customers
//	│   └── invoice/        # Invoices and their transition event log
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go   # CustomerStore, BookingStore, and the rest
//	│   ├── memory/         # In-memory implementation for dev and tests
//	│   └── postgres/       # PostgreSQL implementation for production
//	├── services/           # Business logic, one package per domain
//	├── httpapi/            # REST handlers, routing, audit log
//	├── auth/               # Password checks, JWTs, static API tokens
//	├── events/             # In-process event hub and Redis bridge
//	├── system/             # Worker lifecycle management
//	└── metrics/            # Prometheus collectors
//
// # Responsibilities
//
// The app package is responsible for:
//
//   - Composing the services with their stores and the shared rate card
//   - Registering background workers (proposal sweeper, invoice reminder
//     scanner, Redis bridge) with the lifecycle manager
//   - Exposing the REST API and the operational websocket stream
//   - Application-level concerns: auth, metrics, the audit trail
//
// # Dependency Direction
//
//	cmd/server/
//	      │
//	      ▼
//	internal/app/ (composition)
//	      │
//	      ├──► internal/app/services/ (business logic)
//	      │           │
//	      │           └──► internal/pricing/ (quote math)
//	      │
//	      ├──► internal/app/storage/ (persistence)
//	      │
//	      └──► internal/platform/ (database, migrations)
//
// # Example: Adding a New Domain
//
// When adding a new domain (e.g., "lodging"):
//
//  1. Create domain models in internal/app/domain/lodging/
//  2. Add a store interface to internal/app/storage/interfaces.go
//  3. Implement it in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/lodging/service.go
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/
package app
