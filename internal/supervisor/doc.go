// Package supervisor knows the process supervisor's on-disk conventions:
// the genesis and upgrades bin directories under the daemon home and the
// upgrade-info.json file scheduling a binary swap at a block height.
package supervisor
