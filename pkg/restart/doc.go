// Package restart finds processes that still run code which has since been
// deleted or replaced on disk, typically after a package upgrade.
//
// A Classifier looks at one process: first its executable, then every
// deleted file mapping. Each candidate path is filtered by the configured
// rules and its on-disk content (seen through /proc/<pid>/root) is compared
// with what the process has loaded (/proc/<pid>/exe or
// /proc/<pid>/map_files/<range>). Findings stream to a Sink as they are
// made.
//
// A Scanner drives the Classifier over explicit PIDs (ScanPIDs) or the whole
// process table minus kernel threads (ScanAll), optionally in parallel, and
// returns a Summary. Failures of single processes are logged and counted,
// they never stop the scan.
package restart
