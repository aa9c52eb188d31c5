// Package app wires the hookwire components into an Engine.
//
// New builds every component from a config.Config in dependency order:
//
//	logger → registry → evaluator → lua host → resolver chain →
//	dispatcher → discoverer
//
// and tears down what was already built when a later step fails. Start
// runs the initial discovery and, when configured, the file watcher.
package app
