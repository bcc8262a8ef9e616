// Package assetbook is the Asset registry: asset creation and the thin
// mint/airdrop primitives other engines bootstrap yield and shadow assets
// with.
package assetbook

import (
	"github.com/cradle-labs/cradle-core/services/base"
)

// AssetType classifies how an asset's supply is backed.
type AssetType string

const (
	AssetTypeBridged     AssetType = "bridged"
	AssetTypeNative      AssetType = "native"
	AssetTypeYieldBearing AssetType = "yield_bearing"
	AssetTypeChainNative AssetType = "chain_native"
	AssetTypeStableCoin  AssetType = "stable_coin"
	AssetTypeVolatile    AssetType = "volatile"
)

// Asset is an immutable, once-created token registration.
type Asset struct {
	base.BaseEntity
	AssetManager string    `json:"asset_manager"`
	Token        string    `json:"token"`
	Type         AssetType `json:"type"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	Decimals     int       `json:"decimals"`
	Icon         string    `json:"icon,omitempty"`
}
