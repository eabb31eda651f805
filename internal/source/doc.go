// Package source loads presigned item documents from blob storage.
//
// Documents are read through gocloud.dev/blob, so any bucket URL with a
// registered driver works: file://, mem://, s3:// and gs://. A document may
// be a GeoJSON FeatureCollection, an array of items, a single item, or a bare
// asset map; asset order is preserved in every shape.
//
// [Resolver] maps order, tasking request or collect identifiers onto
// documents stored under a common prefix.
package source
