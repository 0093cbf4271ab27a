// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns: domain entities carry no GORM tags, persistence models hold all
// annotations and table mappings, and ToDomain/FromDomain mappers convert between the
// two. Repositories operate on persistence models only.
//
// mirror.go holds the shadow-store models mirroring the remote accounting system:
// PartyLedgerModel, VoucherModel, StockItemModel and OutstandingBillModel.
package models
