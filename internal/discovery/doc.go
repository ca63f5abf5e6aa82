// Package discovery builds the retained Home Assistant device discovery
// document from registered components. Building is pure and side-effect
// free; publishing and removal belong to the doorbell device lifecycle.
package discovery
