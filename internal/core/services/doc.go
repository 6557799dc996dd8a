// Package services implements the driving ports: batch preparation,
// submission and monitoring, result-stream loading, reconciliation and
// merging. Services hold the orchestration logic and delegate vendor
// and persistence concerns to the driven ports.
package services
