// Package framesink hands decoded video frames from a producer goroutine to
// the goroutine that owns a display surface.
//
// A producer calls Sink.Submit for every decoded frame. The sink stores the
// frame in a fixed slot table, links it to the frame it supersedes and queues
// a FrameReady notification. The consumer (a toolkit loop calling Pump, or a
// goroutine in Run) binds the newest frame to the Surface and destroys every
// frame it superseded. Submit never blocks: when the table is full or the
// consumer has fallen behind, the frame is destroyed on the spot.
//
// RetrieveAll reclaims every in-flight frame, optionally freezing the last
// image on screen as a FlushSnapshot.
package framesink
