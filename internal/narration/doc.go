// Package narration renders narration scripts to speech audio.
//
// Renderer makes a single synthesis attempt per script and writes the audio
// atomically under the audio directory. Any failure degrades to the
// configured default audio asset, so the returned Asset always points at
// playable audio.
package narration
