package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"dzactions/internal/ftpes"
	"dzactions/internal/httputil"
	"dzactions/internal/instagram"
	"dzactions/internal/qiniu"
	"dzactions/internal/shortio"
	"dzactions/internal/tinify"
	"dzactions/internal/transcode"
	"dzactions/internal/wetransfer"
	"dzactions/internal/youtube"
)

var instagramCmd = actionCommand("instagram", "Download an Instagram post or reel", func(d *deps) (dragger, error) {
	client, err := instagram.NewClient(cfg.Instagram.BaseURL, d.HTTP, cfg.UserAgent, d.Log)
	if err != nil {
		return nil, err
	}
	session, err := cfg.SessionPath()
	if err != nil {
		return nil, err
	}
	return &instagram.Action{
		API:         client,
		DZ:          d.DZ,
		Username:    env.Username,
		Password:    env.Password,
		OutputDir:   env.Path,
		SessionPath: session,
		Log:         d.Log,
	}, nil
})

var qiniuCmd = actionCommand("qiniu", "Upload a file or the clipboard image to Qiniu", func(d *deps) (dragger, error) {
	tmp, err := env.TempFolder()
	if err != nil {
		return nil, err
	}
	return &qiniu.Action{
		Store:          qiniu.NewBucket(env.Username, env.Password, env.Server),
		DZ:             d.DZ,
		Dialogs:        d.Dialogs,
		Log:            d.Log,
		RootURL:        env.RootURL,
		BackupDir:      env.RemotePath,
		CheckCollision: cfg.Qiniu.CheckCollision || env.HasModifier("Shift"),
		Pngpaste:       cfg.Qiniu.Pngpaste,
		TempDir:        tmp,
	}, nil
})

var shortioCmd = actionCommand("shortio", "Shorten a URL with Short.io", func(d *deps) (dragger, error) {
	hc, err := httputil.NewClient(d.HTTP)
	if err != nil {
		return nil, err
	}
	return &shortio.Action{
		Shortener: &shortio.Client{
			Endpoint:  cfg.ShortIO.Endpoint,
			APIKey:    env.APIKey,
			Domain:    env.Domain,
			UserAgent: cfg.UserAgent,
			HTTP:      hc,
		},
		DZ:      d.DZ,
		Dialogs: d.Dialogs,
		Log:     d.Log,
	}, nil
})

var tinifyCmd = actionCommand("tinify", "Compress PNG, JPEG and WebP images with TinyPNG", func(d *deps) (dragger, error) {
	hc, err := httputil.NewClient(d.HTTP)
	if err != nil {
		return nil, err
	}
	client := tinify.NewClient(env.APIKey, hc, d.Log)
	client.Endpoint = cfg.Tinify.Endpoint

	var resize *tinify.ResizeOptions
	if cfg.Tinify.ResizeMethod != "" {
		resize = &tinify.ResizeOptions{
			Method: strings.ToLower(cfg.Tinify.ResizeMethod),
			Width:  cfg.Tinify.ResizeWidth,
			Height: cfg.Tinify.ResizeHeight,
		}
	}
	return &tinify.Action{
		Client:       client,
		DZ:           d.DZ,
		Dialogs:      d.Dialogs,
		Log:          d.Log,
		OutputOption: env.OutputFolderOption,
		Sandboxed:    env.Sandboxed,
		PresetDir:    env.Path,
		Resize:       resize,
		Preserve:     cfg.Tinify.Preserve,
	}, nil
})

var wetransferCmd = actionCommand("wetransfer", "Share files through WeTransfer links", func(d *deps) (dragger, error) {
	client, err := wetransfer.NewClient(cfg.WeTransfer.BaseURL, d.HTTP, cfg.UserAgent, d.Log)
	if err != nil {
		return nil, err
	}
	client.ChunkSize = cfg.WeTransfer.ChunkSize
	return &wetransfer.Action{
		Uploader: client,
		DZ:       d.DZ,
		Dialogs:  d.Dialogs,
		Log:      d.Log,
		Message:  cfg.WeTransfer.Message,
	}, nil
})

var youtubeCmd = actionCommand("youtube", "Download a video with yt-dlp", func(d *deps) (dragger, error) {
	out := env.ExtraPath
	if out == "" {
		out = env.Path
	}
	return &youtube.Action{
		Downloader:    &youtube.Ytdlp{Log: d.Log},
		Converter:     &transcode.FFmpeg{Path: cfg.YouTube.FFmpeg, Log: d.Log},
		DZ:            d.DZ,
		Dialogs:       d.Dialogs,
		Log:           d.Log,
		OutputDir:     out,
		Format:        cfg.YouTube.Format,
		ExtractorArgs: cfg.YouTube.ExtractorArgs,
		ConvertH264:   env.ConvertH264,
		AudioOnly:     env.AudioOnly,
		AudioFormat:   cfg.YouTube.AudioFormat,
		AutoUpdate:    cfg.YouTube.AutoUpdate,
		FFmpegDir:     bundledFFmpeg(env.AppleSilicon),
	}, nil
})

var ftpesCmd = actionCommand("ftpes", "Zip files and upload them over FTPES", func(d *deps) (dragger, error) {
	tmp, err := env.TempFolder()
	if err != nil {
		return nil, err
	}
	return &ftpes.Action{
		Dial:       ftpes.TLSDialer(cfg.FTPES.Timeout.Duration, cfg.FTPES.InsecureSkipVerify),
		DZ:         d.DZ,
		Dialogs:    d.Dialogs,
		Log:        d.Log,
		Server:     env.Server,
		Port:       env.Port,
		Username:   env.Username,
		Password:   env.Password,
		RemotePath: env.RemotePath,
		RootURL:    env.RootURL,
		TempDir:    tmp,
	}, nil
})

// bundledFFmpeg returns the ffmpeg folder shipped next to the executable.
func bundledFFmpeg(appleSilicon bool) string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	name := "ffmpeg"
	if appleSilicon {
		name = "ffmpeg-arm"
	}
	return filepath.Join(filepath.Dir(exe), name)
}
