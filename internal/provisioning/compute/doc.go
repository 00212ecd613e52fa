// Package compute provisions the role-grouped EC2 instances of a cluster.
//
// Each role is one provisioning unit. New instances continue the role's
// ordinal sequence so placement across availability zones never reshuffles
// hosts that already exist. Launches carry a client token derived from the
// cluster identity and alias, which makes a re-issued launch return the
// original instance instead of a duplicate.
package compute
