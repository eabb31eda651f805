// Package planner turns presigned asset maps into download requests.
//
// Planning validates the asset map, derives the product identifier from the
// first identity raster, applies include and exclude filters and resolves a
// destination path for every surviving asset. With SeparateDirs each product
// gets its own subdirectory, created on demand.
//
//	reqs, err := planner.Plan(item.Assets, "/data", planner.Options{
//	    Include: []string{"raster", "metadata"},
//	})
package planner
