// Package engine reconciles scan tokens against the operator's current
// task. Every mutating call to the record store funnels through here, and
// at most one token is in flight at any instant regardless of how many
// input sources feed the session.
package engine
