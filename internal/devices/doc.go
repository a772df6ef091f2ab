// Package devices feeds the scan bus from physical input hardware: a
// keyboard-wedge scanner whose keystrokes need reassembly into tokens,
// and a camera decoder that emits whole tokens. A netlink hotplug
// monitor tracks the wedge device coming and going.
package devices
