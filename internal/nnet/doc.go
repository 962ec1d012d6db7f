// Package nnet implements the recurrent classifier: LSTM layers with
// per-utterance hidden and cell state, a dense output layer, the versioned
// weight file format, and the decision selector producing the binary VAD
// flag.
package nnet
