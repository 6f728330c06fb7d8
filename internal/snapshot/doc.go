// Package snapshot defines the transportable form of a dehydrated context.
//
// The wire shape is a JSON object with two well-known keys:
//
//	{
//	  "dispatcher": <dispatcher-defined JSON>,
//	  "plugins":    {"<pluginName>": <plugin-defined JSON>, ...}
//	}
//
// Any other top-level key is reserved. Reserved keys are kept verbatim when a
// snapshot is parsed and written back unchanged when it is encoded, so
// processes that do not understand them still round-trip them.
package snapshot
