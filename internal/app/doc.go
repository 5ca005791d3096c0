// Package app composes the EstateHub services into a running application.
//
// Layout:
//
//	internal/app/
//	├── application.go      wiring and lifecycle
//	├── core/service        shared errors, actors and descriptors
//	├── domain/             user, property and auction models
//	├── storage/            store interfaces plus memory and postgres
//	├── services/           users, properties, auctions, finance,
//	│                       construction, advisor and scraper
//	├── httpapi/            REST and websocket handlers
//	├── metrics/            Prometheus collectors
//	└── system/             service manager and host status
//
// Business rules live in services; this package only wires them.
package app
