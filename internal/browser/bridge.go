package browser

// pageBridge is injected into every page before any script runs. It replaces
// getUserMedia so the meeting receives a synthetic microphone track, and
// exposes window.meetPipe.playPCM for the Go side to push PCM into that track
// and window.meetPipe.stop to silence anything queued or already scheduled.
//
// The mic button is toggled around playback: Meet drops audio from muted
// participants, so the bridge unmutes before queueing and re-mutes two seconds
// after the queue drains.
const pageBridge = `
const _getUserMedia = navigator.mediaDevices.getUserMedia;

class MeetPipe {
    constructor() {
        this.ctx = null;
        this.gain = null;
        this.destination = null;
        this.outputTrack = null;

        this.queue = [];
        this.sources = [];
        this.nextPlayTime = 0;
        this.playing = false;
        this.sampleRate = 48000;
        this.channels = 1;
        this.micOffTimer = null;
    }

    initOutputTrack() {
        if (this.outputTrack) return;

        this.ctx = new AudioContext();
        this.gain = this.ctx.createGain();
        this.destination = this.ctx.createMediaStreamDestination();

        this.gain.gain.value = 1.0;
        this.gain.connect(this.destination);
        this.gain.connect(this.ctx.destination);

        this.outputTrack = this.destination.stream.getAudioTracks()[0];
    }

    drainQueue() {
        if (this.queue.length === 0) {
            this.playing = false;

            if (this.micOffTimer) {
                clearTimeout(this.micOffTimer);
            }
            this.micOffTimer = setTimeout(() => {
                if (this.queue.length === 0) {
                    setMic(false);
                }
            }, 2000);
            return;
        }

        this.playing = true;

        const now = this.ctx.currentTime;
        this.nextPlayTime = Math.max(now, this.nextPlayTime);

        const chunk = this.queue.shift();
        const frames = chunk.data.length / this.channels;
        const buffer = this.ctx.createBuffer(this.channels, frames, this.sampleRate);

        if (this.channels === 1) {
            buffer.getChannelData(0).set(chunk.data);
        } else {
            for (let ch = 0; ch < this.channels; ch++) {
                const channelData = buffer.getChannelData(ch);
                for (let i = 0; i < frames; i++) {
                    channelData[i] = chunk.data[i * this.channels + ch];
                }
            }
        }

        const source = this.ctx.createBufferSource();
        source.buffer = buffer;
        source.connect(this.gain);
        source.onended = () => {
            const i = this.sources.indexOf(source);
            if (i >= 0) this.sources.splice(i, 1);
        };
        this.sources.push(source);
        source.start(this.nextPlayTime);
        this.nextPlayTime += chunk.duration;

        const delayMs = (this.nextPlayTime - now) * 1000 * 0.8;
        setTimeout(() => this.drainQueue(), Math.max(0, delayMs));
    }

    stop() {
        this.queue = [];
        for (const s of this.sources) {
            try { s.stop(); } catch (e) {}
        }
        this.sources = [];
        this.playing = false;
        this.nextPlayTime = 0;

        if (this.micOffTimer) {
            clearTimeout(this.micOffTimer);
        }
        this.micOffTimer = setTimeout(() => {
            if (this.queue.length === 0) {
                setMic(false);
            }
        }, 2000);
    }

    playPCM(samples, sampleRate = 48000, channels = 1) {
        setMic(true);
        this.initOutputTrack();

        if (this.sampleRate !== sampleRate || this.channels !== channels) {
            this.sampleRate = sampleRate;
            this.channels = channels;
        }

        const data = new Float32Array(samples.length);
        for (let i = 0; i < samples.length; i++) {
            data[i] = samples[i] / 32768.0;
        }

        this.queue.push({
            data: data,
            duration: data.length / (channels * sampleRate),
        });

        if (!this.playing) {
            this.drainQueue();
        }
    }

    captionBlocks() {
        const region = document.querySelector('div[role="region"][aria-label="Captions"]');
        if (!region) return [];

        const out = [];
        for (const block of region.querySelectorAll('div[class*="nMcdL"]')) {
            const speaker = block.querySelector('.NWpY1d');
            const text = block.querySelector('.VbkSUe');
            if (!speaker || !text) continue;
            out.push({
                speaker: speaker.textContent.trim(),
                text: text.textContent.trim(),
            });
        }
        return out;
    }
}

function setMic(on) {
    const label = on ? 'button[aria-label="Turn on microphone"]'
                     : 'button[aria-label="Turn off microphone"]';
    const button = document.querySelector(label);
    if (button) button.click();
}

window.meetPipe = new MeetPipe();

navigator.mediaDevices.getUserMedia = function(constraints) {
    return _getUserMedia.call(navigator.mediaDevices, constraints)
        .then(originalStream => {
            originalStream.getTracks().forEach(t => t.stop());

            const stream = new MediaStream();
            if (constraints.audio) {
                window.meetPipe.initOutputTrack();
                stream.addTrack(window.meetPipe.outputTrack);
            }
            return stream;
        });
};
`
