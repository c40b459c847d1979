// Package classify turns raw responses into outcomes and metric samples.
//
// Every request ends in exactly one [Outcome]: success, a domain failure whose
// cause is stock exhaustion, a duplicate order or something else, or a
// transport failure. Domain causes are read from the service's error envelope
// code first and from body markers second.
package classify
