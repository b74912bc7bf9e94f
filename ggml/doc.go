// Package ggml - Graph-basierte Tensor-Engine auf der CPU
//
// Dieses Paket enthaelt den Kern der Engine:
// - Context: Arena-Allokator fuer Tensoren und Payloads
// - Tensor + Operator-Builder: Aufbau des Berechnungsgraphen
// - Graph: topologische Erfassung mit Besuchs-Hash-Set
// - BuildBackwardExpand: Gradienten durch strukturelles Umschreiben
// - GraphPlan/GraphCompute: Planung und Auswertung auf dem Threadpool
// - TypeTraits + Quantisierung: F32/F16/BF16 und Blockformate
//
// Jede Operation ist ein Graph-Knoten; die Auswertung laeuft in
// topologischer Reihenfolge mit einer Barriere nach jedem Knoten.
package ggml
