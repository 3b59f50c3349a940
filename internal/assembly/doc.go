// Package assembly turns narration audio and message metadata into a
// vertical video clip.
//
// Assembler is the only fatal stage of the pipeline. It validates the audio,
// checks free space, sizes the clip to the narration, picks a background,
// and hands the job to a VideoMuxer writing into a scoped temp file that is
// renamed into place only on success. Failures are reported as *Error with
// a transient or permanent kind.
package assembly
