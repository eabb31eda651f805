// Package asset defines the data records exchanged by the download engine.
//
// A [Request] describes one asset transfer: the presigned source URL, the local
// destination, the asset key and the owning product identifier. Requests are
// built by the planner, consumed by the transfer executor and discarded once
// the outcome is recorded.
//
// # Asset Keys
//
// Asset keys form a closed vocabulary modelled by [Kind]:
//
//	HH, VV, HV, VH        polarization rasters (HH and VV are the raw polarizations)
//	analytic_product      analytic raster product
//	changemap             change detection raster
//	metadata, thumbnail,
//	preview               ancillary files
//	log                   internal diagnostics
//
// Any other key maps to [KindOther] and is still downloadable.
//
// # Product Identity
//
// [ProductID] derives the product identifier from the first identity asset
// present (HH, VV, analytic_product, changemap). The identifier is the
// leading part of that asset's filename:
//
//	https://host/path/SAT_C05_SP_GEO_HH_20220101120000_20220101120010.tif?X-Sig=...
//	                  └──────────────── product id ─────────────────┘
//
// # Documents
//
// [Assets] keeps the document order of a JSON asset map so that planned
// requests follow the order the catalog returned them in. [Item] is the
// minimal STAC-like item: id, properties and assets.
package asset
