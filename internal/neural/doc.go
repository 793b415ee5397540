// Package neural implements the positioned neuron population: bounded
// layers that own neurons, neurons that buffer, summate and fire signals
// and keep a forgetting memory of their firings, and the Transmitter bus
// that decays and delivers signal events between them.
//
// Connections are (Position, distance) pairs resolved through the Network
// on every firing, never direct neuron references.
package neural
