// Package buttons keeps the door controller's list of accepted keys in
// line with the authoritative access list.
//
// The access list is a CSV file, usually a git checkout, with an
// "id:secret" field per row. Before each cycle the checkout is
// fast-forwarded, the file is parsed, and the Reconciler compares it with
// what the controller reports for list_buttons. Only differences are sent.
//
// Two plausibility thresholds protect the controller: a cycle aborts
// before touching the device if the access list looks truncated, and
// aborts before changing anything if the device's reply looks truncated.
package buttons
