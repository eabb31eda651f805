// Command stacfetch downloads presigned imagery assets.
//
// Usage:
//
//	stacfetch asset -url <presigned url> [-output dir|file] [-resume]
//	stacfetch product -bucket file:///data -object items/scene.json [-include raster]
//	stacfetch products -bucket s3://orders -object batch/ -separate-dirs -threaded
//	stacfetch order -bucket gs://orders -id o-123
//
// Downloaded paths are printed to stdout, one per line. Logs and progress
// go to stderr. Settings may also come from a YAML file (-config), a .env
// file in the working directory, or STACFETCH_* environment variables;
// flags take precedence.
package main
