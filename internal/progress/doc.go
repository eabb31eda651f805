// Package progress renders per-file download progress.
//
// A single [Reporter] owns one mpb container for the life of the process and
// tracks one [Task] per destination file. Workers update their own task
// concurrently; the coordinator calls [Reporter.Flush] before every batch so
// bars from an earlier batch never linger.
//
// # Usage
//
//	reporter := progress.NewReporter(progress.Options{Output: os.Stderr})
//	defer reporter.Close()
//
//	task := reporter.Add("scene_HH.tif", totalBytes) // or progress.UnknownTotal
//	reporter.Update(task, written)
//	reporter.Complete(task)
//
// # Output Format
//
//	scene_HH.tif   [=========>------------]  1.2 GiB / 2.5 GiB  48 %
//	scene_VV.tif   [====>-----------------]  0.6 GiB / 2.5 GiB  24 %
package progress
