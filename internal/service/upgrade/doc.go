// Package upgrade schedules a node binary upgrade with the process
// supervisor: it probes the node for its current height, computes the
// activation height from the --blocks-ahead offset, downloads and verifies
// the target release for the host architecture, and stages the binary so
// the supervisor swaps it in when the chain reaches the height.
package upgrade
