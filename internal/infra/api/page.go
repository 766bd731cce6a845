package api

import (
	"html/template"
	"net/http"

	"mindfulbot/internal/infra/i18n"
)

type pageData struct {
	Lang        string
	Title       string
	Subtitle    string
	Placeholder string
	Typing      string
	Send        string
	Disclaimer  string
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = pageTmpl.Execute(w, pageData{
		Lang:        s.tr.Lang(),
		Title:       s.tr.T(i18n.AppTitle),
		Subtitle:    s.tr.T(i18n.AppSubtitle),
		Placeholder: s.tr.T(i18n.InputPlaceholder),
		Typing:      s.tr.T(i18n.TypingIndicator),
		Send:        s.tr.T(i18n.SendButton),
		Disclaimer:  s.tr.T(i18n.Disclaimer),
	})
}

var pageTmpl = template.Must(template.New("widget").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
<title>{{.Title}}</title>
<style>
*{box-sizing:border-box}
body{margin:0;min-height:100vh;font-family:system-ui,-apple-system,Segoe UI,Roboto,Arial,sans-serif;background:linear-gradient(135deg,#eef2ff,#faf5ff,#fdf2f8);color:#1f2937}
.wrap{max-width:860px;margin:0 auto;display:flex;flex-direction:column;height:100vh}
header{display:flex;align-items:center;gap:12px;padding:16px 20px;background:rgba(255,255,255,.8);border-bottom:1px solid #e0e7ff}
header .logo{width:40px;height:40px;border-radius:50%;background:linear-gradient(90deg,#6366f1,#a855f7);color:#fff;display:flex;align-items:center;justify-content:center;font-size:20px}
header h1{margin:0;font-size:20px}
header p{margin:0;font-size:13px;color:#6b7280}
#log{flex:1;overflow-y:auto;padding:20px;display:flex;flex-direction:column;gap:14px}
.row{display:flex}
.row.user{justify-content:flex-end}
.bubble{max-width:70%;padding:12px 16px;border-radius:16px;white-space:pre-wrap;word-wrap:break-word}
.bot .bubble{background:rgba(255,255,255,.85);border:1px solid #e0e7ff;margin-right:48px}
.user .bubble{background:linear-gradient(90deg,#6366f1,#a855f7);color:#fff;margin-left:48px}
.ts{display:block;margin-top:6px;font-size:11px;opacity:.7}
#typing{display:none;padding:0 20px 10px;color:#6b7280;font-size:13px}
#typing.on{display:block}
footer{padding:14px 20px;background:rgba(255,255,255,.8);border-top:1px solid #e0e7ff}
.input{display:flex;gap:10px;align-items:flex-end}
textarea{flex:1;resize:none;min-height:44px;max-height:140px;padding:11px 14px;border:1px solid #c7d2fe;border-radius:14px;font:inherit}
button{padding:11px 18px;border:0;border-radius:14px;background:linear-gradient(90deg,#6366f1,#a855f7);color:#fff;font:inherit;cursor:pointer}
button:disabled{opacity:.5;cursor:not-allowed}
.disclaimer{margin:10px 0 0;font-size:12px;color:#6b7280;text-align:center}
</style>
</head>
<body>
<div class="wrap">
  <header>
    <div class="logo">&#9825;</div>
    <div><h1>{{.Title}}</h1><p>{{.Subtitle}}</p></div>
  </header>
  <div id="log" aria-live="polite"></div>
  <div id="typing">{{.Typing}}</div>
  <footer>
    <div class="input">
      <textarea id="text" rows="1" placeholder="{{.Placeholder}}"></textarea>
      <button id="send" disabled>{{.Send}}</button>
    </div>
    <p class="disclaimer">{{.Disclaimer}}</p>
  </footer>
</div>
<script>
(function(){
  const log=document.getElementById("log"), input=document.getElementById("text"),
        btn=document.getElementById("send"), typingEl=document.getElementById("typing");
  let session=null, token="", typing=false;
  const seen=new Set();

  function hhmm(ts){return new Date(ts).toLocaleTimeString([],{hour:"2-digit",minute:"2-digit"})}
  function render(m){
    if(seen.has(m.id))return;
    seen.add(m.id);
    const row=document.createElement("div");
    row.className="row "+m.sender;
    const b=document.createElement("div");
    b.className="bubble";
    b.textContent=m.text;
    const t=document.createElement("span");
    t.className="ts";
    t.textContent=hhmm(m.timestamp);
    b.appendChild(t);row.appendChild(b);log.appendChild(row);
    log.scrollTo({top:log.scrollHeight,behavior:"smooth"});
  }
  function setTyping(on){typing=on;typingEl.classList.toggle("on",on);refresh()}
  function refresh(){btn.disabled=typing||!input.value.trim()||!session}
  function apply(ev){
    if(ev.kind==="snapshot"){ev.session.messages.forEach(render);setTyping(ev.session.typing);return}
    if(ev.kind==="message"&&ev.message)render(ev.message);
    if(ev.kind==="typing")setTyping(ev.typing);
  }
  function connect(){
    const proto=location.protocol==="https:"?"wss:":"ws:";
    const ws=new WebSocket(proto+"//"+location.host+"/api/v1/sessions/"+session+"/events?token="+encodeURIComponent(token));
    ws.onmessage=e=>apply(JSON.parse(e.data));
    ws.onclose=()=>setTimeout(()=>{if(session)connect()},2000);
  }
  async function send(){
    const text=input.value;
    if(!text.trim()||typing||!session)return;
    input.value="";setTyping(true);
    const r=await fetch("/api/v1/sessions/"+session+"/messages",{method:"POST",
      headers:{"Content-Type":"application/json","Authorization":"Bearer "+token},
      body:JSON.stringify({text:text})});
    if(r.status===202){const body=await r.json();render(body.message)}
    else if(r.status===204){setTyping(false)}
    else{input.value=text;setTyping(false)}
  }
  input.addEventListener("input",refresh);
  input.addEventListener("keydown",e=>{if(e.key==="Enter"&&!e.shiftKey){e.preventDefault();send()}});
  btn.addEventListener("click",send);

  fetch("/api/v1/sessions",{method:"POST"}).then(r=>r.json()).then(body=>{
    session=body.session.id;token=body.token;
    body.session.messages.forEach(render);
    refresh();connect();
  });
})();
</script>
</body>
</html>`))
